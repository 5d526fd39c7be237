// Package ifcbpsd holds the input plumbing shared by the particle size
// distribution packages: opening local or gs:// paths, sniffing compression
// and delimiters, and random-access readers.
package ifcbpsd

// Package image implements the L1 image-streaming layer: a byte-addressable
// FileReader abstraction over file://, http(s)://, and oci:// sources, the
// COSI composite-image manifest format on top of it, and the streaming
// decompress+verify+write deployment path onto block devices.
package image

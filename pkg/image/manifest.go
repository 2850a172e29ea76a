package image

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// ManifestEntryPath is the well-known COSI entry path for the image's JSON
// manifest (§4.3).
const ManifestEntryPath = "metadata.json"

// cosiIndexLengthPrefix is the byte width of the big-endian length prefix
// that precedes a COSI stream's JSON entry index.
const cosiIndexLengthPrefix = 8

// ParseCosiIndex reads the entry index a COSI stream carries at its head:
// an 8-byte big-endian length, followed by that many bytes of JSON-encoded
// entries, each naming its own offset and size relative to the start of
// the stream (§4.3's "header registers, for each payload file, its byte
// offset and size").
func ParseCosiIndex(ctx context.Context, reader FileReader) (*CosiEntries, error) {
	prefix, err := reader.SectionReader(ctx, 0, cosiIndexLengthPrefix)
	if err != nil {
		return nil, fmt.Errorf("reading cosi index length: %w", err)
	}
	lenBytes, err := io.ReadAll(prefix)
	prefix.Close()
	if err != nil {
		return nil, fmt.Errorf("reading cosi index length: %w", err)
	}
	if len(lenBytes) != cosiIndexLengthPrefix {
		return nil, fmt.Errorf("truncated cosi index length prefix")
	}
	indexLen := int64(binary.BigEndian.Uint64(lenBytes))

	body, err := reader.SectionReader(ctx, cosiIndexLengthPrefix, indexLen)
	if err != nil {
		return nil, fmt.Errorf("reading cosi index: %w", err)
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("reading cosi index: %w", err)
	}

	var rawEntries []CosiEntry
	if err := json.Unmarshal(data, &rawEntries); err != nil {
		return nil, fmt.Errorf("decoding cosi index: %w", err)
	}
	return NewCosiEntriesFromSlice(rawEntries)
}

// LoadManifest reads and decodes the manifest entry out of a COSI stream
// through reader, resolving its byte range via entries.
func LoadManifest(ctx context.Context, reader FileReader, entries *CosiEntries) (*CosiManifest, error) {
	cr := &CosiReader{FileReader: reader, Entries: entries}
	offset, size, ok := cr.CosiOffset(ManifestEntryPath)
	if !ok {
		return nil, fmt.Errorf("cosi manifest entry %q not found", ManifestEntryPath)
	}

	rc, err := reader.SectionReader(ctx, offset, size)
	if err != nil {
		return nil, fmt.Errorf("opening cosi manifest: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading cosi manifest: %w", err)
	}

	var manifest CosiManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decoding cosi manifest: %w", err)
	}
	return &manifest, nil
}

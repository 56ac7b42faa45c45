package fpmatch

import (
	"encoding/binary"
	"math"
)

const (
	codecMagic   uint32 = 0x464E4E01
	codecVersion uint32 = 1

	// templateRecordSize is the stabilized little-endian wire size of one
	// template record: 64 embedding floats + 3040 image floats + 1
	// orientation float, per §9's portability design note.
	templateRecordSize = (EmbeddingDim + ImageSize + 1) * 4
	codecHeaderSize     = 16
)

// EncodeTemplates frames a template set behind the versioned header of
// §4.7: magic, version, template count, and the stabilized per-record size.
func EncodeTemplates(templates TemplateSet) []byte {
	buf := make([]byte, codecHeaderSize+len(templates)*templateRecordSize)
	binary.LittleEndian.PutUint32(buf[0:4], codecMagic)
	binary.LittleEndian.PutUint32(buf[4:8], codecVersion)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(templates)))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(templateRecordSize))

	off := codecHeaderSize
	for _, t := range templates {
		off = encodeTemplate(buf, off, t)
	}
	return buf
}

func encodeTemplate(buf []byte, off int, t Template) int {
	for _, v := range t.Embedding {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
		off += 4
	}
	for _, v := range t.Image {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
		off += 4
	}
	binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(t.Orientation))
	off += 4
	return off
}

// DecodeTemplates parses and validates a buffer produced by EncodeTemplates.
// It rejects a buffer shorter than the header, a bad magic or version, a
// template_size mismatch against this build's stabilized record size, or a
// total length shorter than the header plus num_templates records.
func DecodeTemplates(buf []byte) (TemplateSet, error) {
	if len(buf) < codecHeaderSize {
		return nil, ErrCodecShortBuffer
	}
	magic := binary.LittleEndian.Uint32(buf[0:4])
	if magic != codecMagic {
		return nil, ErrCodecBadMagic
	}
	version := binary.LittleEndian.Uint32(buf[4:8])
	if version != codecVersion {
		return nil, ErrCodecBadVersion
	}
	numTemplates := binary.LittleEndian.Uint32(buf[8:12])
	recordSize := binary.LittleEndian.Uint32(buf[12:16])
	if recordSize != templateRecordSize {
		return nil, ErrCodecSizeMismatch
	}
	need := codecHeaderSize + int(numTemplates)*templateRecordSize
	if len(buf) < need {
		return nil, ErrCodecShortBuffer
	}

	templates := make(TemplateSet, numTemplates)
	off := codecHeaderSize
	for i := range templates {
		off = decodeTemplate(buf, off, &templates[i])
	}
	return templates, nil
}

func decodeTemplate(buf []byte, off int, t *Template) int {
	for i := range t.Embedding {
		t.Embedding[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[off : off+4]))
		off += 4
	}
	for i := range t.Image {
		t.Image[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[off : off+4]))
		off += 4
	}
	t.Orientation = math.Float32frombits(binary.LittleEndian.Uint32(buf[off : off+4]))
	off += 4
	return off
}

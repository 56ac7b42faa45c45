package fpmatch

import "testing"

func sampleTemplateSet() TemplateSet {
	set := make(TemplateSet, 3)
	for i := range set {
		set[i].Orientation = float32(i) * 10
		for j := range set[i].Embedding {
			set[i].Embedding[j] = float32(i*100+j) / 1000
		}
		for j := range set[i].Image {
			set[i].Image[j] = float32(j%17) / 17
		}
	}
	return set
}

func TestCodecRoundTrip(t *testing.T) {
	orig := sampleTemplateSet()
	buf := EncodeTemplates(orig)
	decoded, err := DecodeTemplates(buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(decoded) != len(orig) {
		t.Fatalf("len = %d, want %d", len(decoded), len(orig))
	}
	for i := range orig {
		if decoded[i] != orig[i] {
			t.Fatalf("template %d mismatch:\n got  %+v\n want %+v", i, decoded[i], orig[i])
		}
	}
}

func TestCodecRoundTripEmptySet(t *testing.T) {
	buf := EncodeTemplates(nil)
	decoded, err := DecodeTemplates(buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(decoded) != 0 {
		t.Fatalf("len = %d, want 0", len(decoded))
	}
}

func TestCodecRejectsShortBuffer(t *testing.T) {
	buf := EncodeTemplates(sampleTemplateSet())
	_, err := DecodeTemplates(buf[:len(buf)-1])
	if err != ErrCodecShortBuffer {
		t.Fatalf("err = %v, want ErrCodecShortBuffer", err)
	}
}

func TestCodecRejectsBadMagic(t *testing.T) {
	buf := EncodeTemplates(sampleTemplateSet())
	buf[0] ^= 0xFF
	_, err := DecodeTemplates(buf)
	if err != ErrCodecBadMagic {
		t.Fatalf("err = %v, want ErrCodecBadMagic", err)
	}
}

func TestCodecRejectsBadVersion(t *testing.T) {
	buf := EncodeTemplates(sampleTemplateSet())
	buf[4] ^= 0xFF
	_, err := DecodeTemplates(buf)
	if err != ErrCodecBadVersion {
		t.Fatalf("err = %v, want ErrCodecBadVersion", err)
	}
}

func TestCodecRejectsTruncatedHeader(t *testing.T) {
	buf := EncodeTemplates(sampleTemplateSet())
	_, err := DecodeTemplates(buf[:8])
	if err != ErrCodecShortBuffer {
		t.Fatalf("err = %v, want ErrCodecShortBuffer", err)
	}
}

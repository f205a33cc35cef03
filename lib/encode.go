package mcquad

import (
	"bytes"
	"encoding/gob"
	"io"

	"github.com/mailru/easyjson/jwriter"
)

func init() {
	gob.Register(&IterationRecord{})
}

// An IterationRecord is the flat, serializable digest of one controller
// iteration, suitable for streaming to disk and reporting.
type IterationRecord struct {
	Iteration  int       `json:"iteration"`
	Neval      int64     `json:"neval"`
	Mean       []float64 `json:"mean"`
	MeanImag   []float64 `json:"mean_imag,omitempty"`
	Error      []float64 `json:"error"`
	ErrorImag  []float64 `json:"error_imag,omitempty"`
	Reweight   []float64 `json:"reweight"`
	Acceptance float64   `json:"acceptance"`
	Stalled    bool      `json:"stalled,omitempty"`
}

func newIterationRecord(it int, c *Config, mean, errv []complex128, stalled bool) *IterationRecord {
	rec := &IterationRecord{
		Iteration: it,
		Neval:     c.Neval,
		Reweight:  append([]float64(nil), c.Reweight...),
		Stalled:   stalled,
	}
	rec.Mean, rec.MeanImag = splitComplex(mean)
	rec.Error, rec.ErrorImag = splitComplex(errv)
	if !hasNonZero(rec.MeanImag) && !hasNonZero(rec.ErrorImag) {
		rec.MeanImag, rec.ErrorImag = nil, nil
	}

	var proposed, accepted float64
	for kind := range c.Propose {
		for i := range c.Propose[kind] {
			for j := range c.Propose[kind][i] {
				proposed += c.Propose[kind][i][j]
				accepted += c.Accept[kind][i][j]
			}
		}
	}
	if proposed > 0 {
		rec.Acceptance = accepted / proposed
	}
	return rec
}

func hasNonZero(xs []float64) bool {
	for _, x := range xs {
		if x != 0 {
			return true
		}
	}
	return false
}

// Equal reports whether two records hold the same values.
func (r *IterationRecord) Equal(other *IterationRecord) bool {
	return r.Iteration == other.Iteration &&
		r.Neval == other.Neval &&
		floatsEqual(r.Mean, other.Mean) &&
		floatsEqual(r.MeanImag, other.MeanImag) &&
		floatsEqual(r.Error, other.Error) &&
		floatsEqual(r.ErrorImag, other.ErrorImag) &&
		floatsEqual(r.Reweight, other.Reweight) &&
		r.Acceptance == other.Acceptance &&
		r.Stalled == other.Stalled
}

func floatsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// An Encoder encodes an IterationRecord, returning an error on failure.
type Encoder func(*IterationRecord) error

// Encode encodes the given record.
func (enc Encoder) Encode(r *IterationRecord) error { return enc(r) }

// A Decoder decodes an IterationRecord, returning an error on failure.
type Decoder func(*IterationRecord) error

// Decode decodes into the given record.
func (dec Decoder) Decode(r *IterationRecord) error { return dec(r) }

// A DecoderFactory constructs a Decoder from an io.Reader.
type DecoderFactory func(io.Reader) Decoder

// DecoderFor sniffs the encoding of the first bytes of r and returns the
// matching Decoder, or nil when no supported encoding matches.
func DecoderFor(r io.Reader) Decoder {
	var buf bytes.Buffer
	for _, dec := range []DecoderFactory{
		NewDecoder,
		NewJSONDecoder,
	} {
		rd := io.MultiReader(bytes.NewReader(buf.Bytes()), io.TeeReader(r, &buf))
		if err := dec(rd).Decode(&IterationRecord{}); err == nil {
			return dec(io.MultiReader(&buf, r))
		}
	}
	return nil
}

// NewEncoder returns a gob stream Encoder over w.
func NewEncoder(w io.Writer) Encoder {
	enc := gob.NewEncoder(w)
	return func(r *IterationRecord) error { return enc.Encode(r) }
}

// NewDecoder returns a gob stream Decoder over rd.
func NewDecoder(rd io.Reader) Decoder {
	dec := gob.NewDecoder(rd)
	return func(r *IterationRecord) error { return dec.Decode(r) }
}

// NewJSONEncoder returns an NDJSON Encoder over w.
func NewJSONEncoder(w io.Writer) Encoder {
	return func(r *IterationRecord) error {
		var jw jwriter.Writer
		(*jsonRecord)(r).encode(&jw)
		jw.RawByte('\n')
		if jw.Error != nil {
			return jw.Error
		}
		_, err := jw.DumpTo(w)
		return err
	}
}

// NewJSONDecoder returns an NDJSON Decoder over rd.
func NewJSONDecoder(rd io.Reader) Decoder {
	dec := newStreamDecoder(rd)
	return func(r *IterationRecord) error { return dec.decode(r) }
}

// This file has been modified from the original generated code to make it work
// with type alias jsonRecord so that the methods aren't exposed in IterationRecord.
package mcquad

import (
	"bufio"
	"io"

	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
)

type jsonRecord IterationRecord

func (out *jsonRecord) decode(in *jlexer.Lexer) {
	isTopLevel := in.IsStart()
	if in.IsNull() {
		if isTopLevel {
			in.Consumed()
		}
		in.Skip()
		return
	}
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeString()
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "iteration":
			out.Iteration = int(in.Int())
		case "neval":
			out.Neval = int64(in.Int64())
		case "mean":
			out.Mean = decodeFloats(in, out.Mean)
		case "mean_imag":
			out.MeanImag = decodeFloats(in, out.MeanImag)
		case "error":
			out.Error = decodeFloats(in, out.Error)
		case "error_imag":
			out.ErrorImag = decodeFloats(in, out.ErrorImag)
		case "reweight":
			out.Reweight = decodeFloats(in, out.Reweight)
		case "acceptance":
			out.Acceptance = float64(in.Float64())
		case "stalled":
			out.Stalled = bool(in.Bool())
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
	if isTopLevel {
		in.Consumed()
	}
}

func decodeFloats(in *jlexer.Lexer, out []float64) []float64 {
	if in.IsNull() {
		in.Skip()
		return nil
	}
	in.Delim('[')
	if out == nil {
		if !in.IsDelim(']') {
			out = make([]float64, 0, 4)
		} else {
			out = []float64{}
		}
	} else {
		out = out[:0]
	}
	for !in.IsDelim(']') {
		out = append(out, float64(in.Float64()))
		in.WantComma()
	}
	in.Delim(']')
	return out
}

func (in jsonRecord) encode(out *jwriter.Writer) {
	out.RawByte('{')
	first := true
	_ = first
	{
		const prefix string = ",\"iteration\":"
		if first {
			first = false
			out.RawString(prefix[1:])
		} else {
			out.RawString(prefix)
		}
		out.Int(int(in.Iteration))
	}
	{
		const prefix string = ",\"neval\":"
		out.RawString(prefix)
		out.Int64(int64(in.Neval))
	}
	{
		const prefix string = ",\"mean\":"
		out.RawString(prefix)
		encodeFloats(out, in.Mean)
	}
	if len(in.MeanImag) != 0 {
		const prefix string = ",\"mean_imag\":"
		out.RawString(prefix)
		encodeFloats(out, in.MeanImag)
	}
	{
		const prefix string = ",\"error\":"
		out.RawString(prefix)
		encodeFloats(out, in.Error)
	}
	if len(in.ErrorImag) != 0 {
		const prefix string = ",\"error_imag\":"
		out.RawString(prefix)
		encodeFloats(out, in.ErrorImag)
	}
	{
		const prefix string = ",\"reweight\":"
		out.RawString(prefix)
		encodeFloats(out, in.Reweight)
	}
	{
		const prefix string = ",\"acceptance\":"
		out.RawString(prefix)
		out.Float64(float64(in.Acceptance))
	}
	if in.Stalled {
		const prefix string = ",\"stalled\":"
		out.RawString(prefix)
		out.Bool(bool(in.Stalled))
	}
	out.RawByte('}')
}

func encodeFloats(out *jwriter.Writer, xs []float64) {
	if xs == nil {
		out.RawString("null")
		return
	}
	out.RawByte('[')
	for i, x := range xs {
		if i > 0 {
			out.RawByte(',')
		}
		out.Float64(x)
	}
	out.RawByte(']')
}

// streamDecoder decodes newline-delimited JSON records.
type streamDecoder struct {
	scan *bufio.Scanner
}

func newStreamDecoder(rd io.Reader) *streamDecoder {
	return &streamDecoder{scan: bufio.NewScanner(rd)}
}

func (d *streamDecoder) decode(r *IterationRecord) error {
	if !d.scan.Scan() {
		if err := d.scan.Err(); err != nil {
			return err
		}
		return io.EOF
	}
	in := jlexer.Lexer{Data: d.scan.Bytes()}
	(*jsonRecord)(r).decode(&in)
	return in.Error()
}

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	mcquad "github.com/ltseng/mcquad/lib"
)

func file(name string, create bool) (*os.File, error) {
	switch name {
	case "stdin":
		return os.Stdin, nil
	case "stdout":
		return os.Stdout, nil
	default:
		if create {
			return os.Create(name)
		}
		return os.Open(name)
	}
}

func decoder(files []string) (mcquad.Decoder, io.Closer, error) {
	closer := make(multiCloser, 0, len(files))
	decs := make([]mcquad.Decoder, 0, len(files))
	for _, f := range files {
		rc, err := file(f, false)
		if err != nil {
			return nil, closer, err
		}

		dec := mcquad.DecoderFor(rc)
		if dec == nil {
			return nil, closer, fmt.Errorf("encode: can't detect encoding of %q", f)
		}

		decs = append(decs, dec)
		closer = append(closer, rc)
	}
	return chainDecoders(decs), closer, nil
}

// chainDecoders drains each decoder in turn.
func chainDecoders(decs []mcquad.Decoder) mcquad.Decoder {
	if len(decs) == 1 {
		return decs[0]
	}
	i := 0
	return func(r *mcquad.IterationRecord) (err error) {
		for ; i < len(decs); i++ {
			if err = decs[i].Decode(r); err != io.EOF {
				return err
			}
		}
		return io.EOF
	}
}

type multiCloser []io.Closer

func (mc multiCloser) Close() error {
	var errs []string
	for _, c := range mc {
		if err := c.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

package service

import (
	"fmt"

	"github.com/ppopth/gf128-factor/binding"
	"github.com/ppopth/gf128-factor/field"
	"github.com/ppopth/gf128-factor/pb"
	"github.com/ppopth/gf128-factor/poly"
)

func encodeElement(e field.Element) []byte {
	b := e.Block()
	return b[:]
}

func decodeElement(b []byte) (field.Element, error) {
	if len(b) != field.ElementSize {
		return field.Element{}, fmt.Errorf("%w: expected %d bytes, got %d", binding.ErrInvalidCoefficient, field.ElementSize, len(b))
	}
	return field.FromBlock([field.ElementSize]byte(b)), nil
}

func encodePolynomial(p poly.Polynomial) [][]byte {
	coeffs := p.Coefficients()
	out := make([][]byte, len(coeffs))
	for i, c := range coeffs {
		out[i] = encodeElement(c)
	}
	return out
}

func decodePolynomial(coeffs [][]byte) (poly.Polynomial, error) {
	elements := make([]field.Element, len(coeffs))
	for i, c := range coeffs {
		e, err := decodeElement(c)
		if err != nil {
			return poly.Polynomial{}, fmt.Errorf("coefficient %d: %w", i, err)
		}
		elements[i] = e
	}
	return poly.New(elements...), nil
}

func decodePolynomials(msgs []*pb.Polynomial) ([]poly.Polynomial, error) {
	out := make([]poly.Polynomial, len(msgs))
	for i, m := range msgs {
		p, err := decodePolynomial(m.GetCoefficients())
		if err != nil {
			return nil, fmt.Errorf("factor %d: %w", i, err)
		}
		out[i] = p
	}
	return out, nil
}

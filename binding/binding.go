// Package binding exposes the factorization pipeline over hex-encoded GCM blocks.
// Coefficients are listed lowest degree first; each is 32 hex digits.
package binding

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/ppopth/gf128-factor/factor"
	"github.com/ppopth/gf128-factor/field"
	"github.com/ppopth/gf128-factor/poly"
)

// ErrInvalidCoefficient is returned for coefficients that are not 16-byte hex blocks
var ErrInvalidCoefficient = errors.New("invalid coefficient")

// ErrInvalidGroups is returned by ParseDistinctDegree for malformed token streams
var ErrInvalidGroups = errors.New("invalid distinct-degree token stream")

// DecodeElement parses one hex-encoded GCM block
func DecodeElement(s string) (field.Element, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return field.Element{}, fmt.Errorf("%w %q: %v", ErrInvalidCoefficient, s, err)
	}
	if len(raw) != field.ElementSize {
		return field.Element{}, fmt.Errorf("%w %q: expected %d bytes, got %d", ErrInvalidCoefficient, s, field.ElementSize, len(raw))
	}
	return field.FromBlock([field.ElementSize]byte(raw)), nil
}

// EncodeElement returns the hex-encoded GCM block of e
func EncodeElement(e field.Element) string {
	b := e.Block()
	return hex.EncodeToString(b[:])
}

// DecodePolynomial parses hex coefficients, lowest degree first
func DecodePolynomial(coeffs []string) (poly.Polynomial, error) {
	elements := make([]field.Element, len(coeffs))
	for i, c := range coeffs {
		e, err := DecodeElement(c)
		if err != nil {
			return poly.Polynomial{}, fmt.Errorf("coefficient %d: %w", i, err)
		}
		elements[i] = e
	}
	return poly.New(elements...), nil
}

// EncodePolynomial returns the hex coefficients of p, lowest degree first
func EncodePolynomial(p poly.Polynomial) []string {
	coeffs := p.Coefficients()
	out := make([]string, len(coeffs))
	for i, c := range coeffs {
		out[i] = EncodeElement(c)
	}
	return out
}

// FindZeros returns the distinct roots of the polynomial as hex blocks
func FindZeros(coeffs []string) ([]string, error) {
	p, err := DecodePolynomial(coeffs)
	if err != nil {
		return nil, err
	}
	roots, err := factor.Roots(p)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(roots))
	for i, r := range roots {
		out[i] = EncodeElement(r)
	}
	return out, nil
}

// SquareFree returns the coefficients of the monic square-free part
func SquareFree(coeffs []string) ([]string, error) {
	p, err := DecodePolynomial(coeffs)
	if err != nil {
		return nil, err
	}
	sf, err := factor.SquareFree(p)
	if err != nil {
		return nil, err
	}
	return EncodePolynomial(sf), nil
}

// DistinctDegree groups the factors of the square-free part by degree
// Groups are flattened into one token stream: the group's coefficients, its factor
// degree in decimal, then an empty string.
func DistinctDegree(coeffs []string) ([]string, error) {
	p, err := DecodePolynomial(coeffs)
	if err != nil {
		return nil, err
	}
	sf, err := factor.SquareFree(p)
	if err != nil {
		return nil, err
	}
	groups, err := factor.DistinctDegree(sf)
	if err != nil {
		return nil, err
	}
	return FlattenGroups(groups), nil
}

// FlattenGroups encodes distinct-degree groups as a token stream
func FlattenGroups(groups []factor.Group) []string {
	var out []string
	for _, g := range groups {
		out = append(out, EncodePolynomial(g.Poly)...)
		out = append(out, strconv.Itoa(g.Degree), "")
	}
	return out
}

// ParseDistinctDegree decodes a token stream produced by DistinctDegree
func ParseDistinctDegree(tokens []string) ([]factor.Group, error) {
	var groups []factor.Group
	start := 0
	for i, tok := range tokens {
		if tok != "" {
			continue
		}
		// tokens[start:i-1] are coefficients, tokens[i-1] the degree
		if i-start < 2 {
			return nil, fmt.Errorf("%w: group ending at token %d has no coefficients", ErrInvalidGroups, i)
		}
		degree, err := strconv.Atoi(tokens[i-1])
		if err != nil || degree < 1 {
			return nil, fmt.Errorf("%w: bad degree %q", ErrInvalidGroups, tokens[i-1])
		}
		p, err := DecodePolynomial(tokens[start : i-1])
		if err != nil {
			return nil, err
		}
		groups = append(groups, factor.Group{Poly: p, Degree: degree})
		start = i + 1
	}
	if start != len(tokens) {
		return nil, fmt.Errorf("%w: %d trailing tokens", ErrInvalidGroups, len(tokens)-start)
	}
	return groups, nil
}

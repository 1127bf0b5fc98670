package link

import (
	"strconv"
	"strings"
)

const witnessPrefix = "WIT"

// WitnessReport is the correlation evidence carried by a WIT line, ex:
//
//	WIT round=12 node=1 corr=0.823
//
// Node is not parsed from the line; it is the index of the link that
// delivered it, filled in by the caller.
type WitnessReport struct {
	Round int
	Node  int
	Corr  float64
}

// ParseWitness tokenizes a WIT line into a WitnessReport. ok is false when
// the line is not a witness line at all. Recognized keys are "round" and
// "corr"; unrecognized keys are ignored and malformed numeric values default
// to 0.
func ParseWitness(line string) (WitnessReport, bool) {
	if !strings.HasPrefix(line, witnessPrefix) {
		return WitnessReport{}, false
	}

	rep := WitnessReport{}

	for _, token := range strings.Fields(line)[1:] {
		k, v, found := strings.Cut(token, "=")
		if !found {
			continue
		}

		switch k {
		case "round":
			rep.Round, _ = strconv.Atoi(v)
		case "corr":
			rep.Corr, _ = strconv.ParseFloat(v, 64)
		}
	}

	return rep, true
}

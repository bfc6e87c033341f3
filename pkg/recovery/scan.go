package recovery

import "strings"

// Printable ASCII range scanned for inside serialized attributed
// strings. Bytes outside it delimit runs.
const (
	printableMin = 0x20
	printableMax = 0x7E
)

// Filter tuning. The thresholds are empirical: short runs and runs that
// start with framework class/key prefixes are serialization noise, not
// message content. Revisit here, not in the scanner.
const minRunLength = 20

var noisePrefixes = []string{"NS", "__kIM"}

// PrintableRuns scans a blob byte by byte and returns every maximal run
// of printable ASCII, in order of occurrence. It applies no filtering;
// policy lives in filterRuns.
func PrintableRuns(b []byte) []string {
	var runs []string
	i := 0
	for i < len(b) {
		for i < len(b) && (b[i] < printableMin || b[i] > printableMax) {
			i++
		}
		start := i
		for i < len(b) && b[i] >= printableMin && b[i] <= printableMax {
			i++
		}
		if i > start {
			runs = append(runs, string(b[start:i]))
		}
	}
	return runs
}

// filterRuns drops runs too short to be message content and runs that
// start with a known framework prefix.
func filterRuns(runs []string) []string {
	kept := runs[:0:0]
	for _, run := range runs {
		if len(run) <= minRunLength {
			continue
		}
		if hasNoisePrefix(run) {
			continue
		}
		kept = append(kept, run)
	}
	return kept
}

func hasNoisePrefix(run string) bool {
	for _, prefix := range noisePrefixes {
		if strings.HasPrefix(run, prefix) {
			return true
		}
	}
	return false
}

// longestRun picks the longest candidate, first occurrence winning
// ties. Empty input yields "".
func longestRun(runs []string) string {
	var best string
	for _, run := range runs {
		if len(run) > len(best) {
			best = run
		}
	}
	return best
}

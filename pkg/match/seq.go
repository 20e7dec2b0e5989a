package match

var complement = [256]byte{}

func init() {
	for i := range complement {
		complement[i] = byte(i)
	}
	pairs := []string{"AT", "CG", "NN", "at", "cg", "nn"}
	for _, p := range pairs {
		complement[p[0]] = p[1]
		complement[p[1]] = p[0]
	}
}

// ReverseComplement returns the reverse complement of a nucleotide
// sequence. Bases other than ACGTN are copied unchanged.
func ReverseComplement(seq string) string {
	out := make([]byte, len(seq))
	for i := 0; i < len(seq); i++ {
		out[len(seq)-1-i] = complement[seq[i]]
	}
	return string(out)
}

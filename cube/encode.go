package cube

// EncodedSize is the flat one-hot size of a single state as fed to the
// neural evaluator: one channel per face colour for each facelet.
const EncodedSize = Stickers * numFaces

// Encode appends the one-hot encoding of s to dst and returns the
// extended slice. Pass nil to allocate.
func Encode(dst []float32, s State) []float32 {
	start := len(dst)
	dst = append(dst, make([]float32, EncodedSize)...)
	for i, c := range s {
		dst[start+i*numFaces+int(c)] = 1
	}
	return dst
}

// EncodeBatch one-hot encodes a batch of states into a single
// contiguous buffer, the layout the ONNX evaluator expects.
func EncodeBatch(states []State) []float32 {
	out := make([]float32, 0, len(states)*EncodedSize)
	for _, s := range states {
		out = Encode(out, s)
	}
	return out
}

package dsp

// PreprocessingVersion tags the exact numeric behavior of every
// preprocessor in this package. Bump it whenever any preprocessor's
// arithmetic changes, per the spec's versioning contract: two runs at
// the same tag on byte-identical input must produce byte-identical
// output.
const PreprocessingVersion = "v1.0.0"

package entities

// RandomNumberInput requests an integer in the inclusive range [Min, Max].
// Zero is a legitimate bound on either side, so the range is validated in the
// usecase rather than with presence tags.
type RandomNumberInput struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

// RandomStringInput requests a random string of the given length.
type RandomStringInput struct {
	Length  int    `json:"length" binding:"required,min=1,max=1024"`
	Charset string `json:"charset"`
}

// RandomBytesInput requests random bytes, returned hex-encoded.
type RandomBytesInput struct {
	Length int `json:"length" binding:"required,min=1,max=1024"`
}

// RandomResult carries a generated value and its provenance.
// Source is "hardware" when derived from the upstream entropy feed and
// "fallback" when the feed was unavailable and a pseudo-random seed was used.
type RandomResult struct {
	Value  interface{} `json:"value"`
	Source string      `json:"source"`
}

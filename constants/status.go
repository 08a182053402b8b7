package constants

// PhotoStatus is the outcome recorded for each processed photo.
type PhotoStatus string

const (
	PhotoStatusQueued    PhotoStatus = "QUEUED"
	PhotoStatusOK        PhotoStatus = "OK"         // row produced with both readings
	PhotoStatusPartial   PhotoStatus = "PARTIAL"    // row produced, at least one reading unset
	PhotoStatusNoReading PhotoStatus = "NO_READING" // no numeric token at all
	PhotoStatusError     PhotoStatus = "ERROR"      // recognizer or metadata failure
)

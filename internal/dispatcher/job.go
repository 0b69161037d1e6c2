package dispatcher

// Job operations.
const (
	OpCompress    = "compress"
	OpExtractText = "extract_text"
	OpRemoveText  = "remove_text"
)

// Job is the queue payload for one unit of work.
type Job struct {
	JobID       string `json:"job_id"`
	Op          string `json:"op"`
	InputPath   string `json:"input_path"`
	OutputPath  string `json:"output_path"`
	TargetBytes int64  `json:"target_bytes,omitempty"`
	Tolerance   string `json:"tolerance,omitempty"`
	Attempt     int    `json:"attempt"`
	IdemKey     string `json:"idem_key,omitempty"`
}

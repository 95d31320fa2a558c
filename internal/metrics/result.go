package metrics

// InstanceResult is the one-line-per-instance output record. Nil blocks
// marshal as JSON null: a null granularity means it could not be computed
// for this instance, a null trajectory block means no steps were retained.
type InstanceResult struct {
	InstanceID string `json:"instance_id"`
	NumSteps   int    `json:"num_steps"`

	Final      *FinalResult      `json:"final,omitempty"`
	Trajectory *TrajectoryResult `json:"trajectory,omitempty"`
	EditLoc    *EditLocResult    `json:"editloc,omitempty"`

	// Error is set on instance-level failures (checkout, no context); the
	// record is still emitted so batch output stays one line per instance.
	Error string `json:"error,omitempty"`
	// Notes records absorbed per-file/per-span anomalies, never silently
	// dropped.
	Notes []string `json:"notes,omitempty"`
}

// Assemble combines the three metric families into the instance record.
func Assemble(instanceID string, numSteps int, final *FinalResult, traj *TrajectoryResult, edit *EditLocResult, notes []string) *InstanceResult {
	return &InstanceResult{
		InstanceID: instanceID,
		NumSteps:   numSteps,
		Final:      final,
		Trajectory: traj,
		EditLoc:    edit,
		Notes:      notes,
	}
}

// ErrorResult builds the record emitted when an instance fails before any
// metric can be computed.
func ErrorResult(instanceID string, errMsg string) *InstanceResult {
	return &InstanceResult{InstanceID: instanceID, Error: errMsg}
}

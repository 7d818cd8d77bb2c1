package xqueue

// ══════════════════════════════════════════════════════════════════════════════
// WIRE FORMAT
// The queue speaks a two-field form encoding: a JSON header that routes the
// submission and correlates the eventual callback, and a JSON body the grader
// treats as opaque.
// ══════════════════════════════════════════════════════════════════════════════

// submissionHeader routes a submission and tells the grader where to post the
// result.
type submissionHeader struct {
	// LMSCallbackURL is where the grader posts the result.
	LMSCallbackURL string `json:"lms_callback_url"`

	// LMSKey correlates the callback with the pending submission.
	LMSKey string `json:"lms_key"`

	// QueueName selects the grader queue.
	QueueName string `json:"queue_name"`
}

// submitResponse is the queue's acknowledgement of a submission.
type submitResponse struct {
	// ReturnCode is zero on success.
	ReturnCode int `json:"return_code"`

	// Content carries the failure reason when ReturnCode is non-zero.
	Content string `json:"content"`
}

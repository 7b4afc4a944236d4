package retry

import "time"

// Outcome is the structured result of a retried operation. Exactly one of Value
// and Err is meaningful, as indicated by Success.
type Outcome[T any] struct {
	Success  bool
	Value    T
	Err      error
	Attempts int
	Elapsed  time.Duration

	// Classified is set when the executor has a classifier and the operation failed.
	Classified *ClassifiedError
}

// Result unpacks the outcome into the conventional (value, error) pair.
func (o Outcome[T]) Result() (T, error) {
	if o.Success {
		return o.Value, nil
	}
	var zero T
	return zero, o.Err
}

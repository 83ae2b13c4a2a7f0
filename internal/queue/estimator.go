package queue

const DefaultMinutesPerPatient = 15

// Estimator turns a queue number into an advisory wait in minutes.
type Estimator interface {
	EstimateWait(queueNumber int) int
}

// FixedRate assumes every patient ahead takes the same time.
type FixedRate struct {
	MinutesPerPatient int
}

func (f FixedRate) EstimateWait(queueNumber int) int {
	m := f.MinutesPerPatient
	if m <= 0 {
		m = DefaultMinutesPerPatient
	}
	return queueNumber * m
}

// EstimatorFunc adapts a plain function to Estimator.
type EstimatorFunc func(queueNumber int) int

func (f EstimatorFunc) EstimateWait(queueNumber int) int {
	return f(queueNumber)
}

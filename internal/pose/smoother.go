package pose

const DefaultWindow = 5

// Smoother is a fixed-capacity moving average over the most recent samples
// of one signal. The oldest sample is overwritten once the window is full.
type Smoother struct {
	data  []float64
	head  int
	count int
}

func NewSmoother(window int) *Smoother {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Smoother{data: make([]float64, window)}
}

func (s *Smoother) Push(v float64) {
	s.data[s.head] = v
	s.head = (s.head + 1) % len(s.data)
	if s.count < len(s.data) {
		s.count++
	}
}

// Average is the mean of the buffered samples, or 0 when empty.
func (s *Smoother) Average() float64 {
	if s.count == 0 {
		return 0
	}
	var sum float64
	for _, v := range s.Values() {
		sum += v
	}
	return sum / float64(s.count)
}

func (s *Smoother) Len() int { return s.count }

func (s *Smoother) Cap() int { return len(s.data) }

// Values returns a copy of the buffered samples, oldest first.
func (s *Smoother) Values() []float64 {
	out := make([]float64, 0, s.count)
	start := (s.head - s.count + len(s.data)) % len(s.data)
	for i := 0; i < s.count; i++ {
		out = append(out, s.data[(start+i)%len(s.data)])
	}
	return out
}

func (s *Smoother) Reset() {
	s.head = 0
	s.count = 0
}

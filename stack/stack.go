package stack

func New[T any]() *stack[T] {
	return &stack[T]{}
}

func (s *stack[T]) Len() int {
	return len(s.xs)
}

func (s *stack[T]) IsEmpty() bool {
	return len(s.xs) == 0
}

func (s *stack[T]) Pop() (T, bool) {
	var zero T

	if len(s.xs) == 0 {
		return zero, false
	}
	x := s.xs[len(s.xs)-1]
	s.xs[len(s.xs)-1] = zero
	s.xs = s.xs[:len(s.xs)-1]
	return x, true
}

func (s *stack[T]) Peek() (T, bool) {
	var zero T

	if len(s.xs) == 0 {
		return zero, false
	}
	return s.xs[len(s.xs)-1], true
}

func (s *stack[T]) Push(x T) {
	s.xs = append(s.xs, x)
}

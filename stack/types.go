package stack

type Stack[T any] interface {
	Len() int
	IsEmpty() bool
	Push(T)
	Pop() (T, bool)
	Peek() (T, bool)
}

type stack[T any] struct {
	xs []T
}

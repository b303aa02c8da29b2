package util

func mod(a int, b int) int {
	return ((a % b) + b) % b
}

// fixed-size ring-buffer queue
type Queue[T any] struct {
	data	[]T
	head	int // next slot to write to
	cnt 	int
}

func CreateQueue[T any](size int) Queue[T] {
	return Queue[T] {
		head: 	0,
		cnt: 	0,
		data: 	make([]T, size),
	}
}

func (q *Queue[T]) Cnt() int {
	return q.cnt
}

func (q *Queue[T]) Cap() int {
	return len(q.data)
}

func (q *Queue[T]) Full() bool {
	return q.cnt == len(q.data)
}

// will panic if out of space.
func (q *Queue[T]) Push(val T) {
	if q.cnt == len(q.data) { panic("queue overflow") }
	q.data[q.head] = val
	q.head = mod((q.head + 1), len(q.data))
	q.cnt++
}

// Pops the oldest value. The vacated slot is zeroed so the queue never keeps
// a reference to something it handed out.
func (q *Queue[T]) Pop() T {
	if q.cnt == 0 { panic("queue underflow") }
	i := mod((q.head - q.cnt), len(q.data))
	q.cnt--
	val := q.data[i]
	var zero T
	q.data[i] = zero
	return val
}

// TryPop is Pop without the panic.
func (q *Queue[T]) TryPop() (T, bool) {
	if q.cnt == 0 {
		var zero T
		return zero, false
	}
	return q.Pop(), true
}

// Drain pops everything, oldest first.
func (q *Queue[T]) Drain(fn func(T)) {
	for q.cnt > 0 {
		fn(q.Pop())
	}
}

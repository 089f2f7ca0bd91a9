package structs

import "iter"

type empty = struct{}

// Set — простое множество для значений типа T
type Set[T comparable] map[T]empty

// NewSet создаёт множество из переданных значений
func NewSet[T comparable](values ...T) Set[T] {
	res := make(Set[T], len(values))
	for _, v := range values {
		res[v] = empty{}
	}
	return res
}

// Add добавляет элемент в множество
func (s Set[T]) Add(value T) {
	s[value] = empty{}
}

// Contains проверяет наличие элемента
func (s Set[T]) Contains(value T) bool {
	_, exists := s[value]
	return exists
}

// Size возвращает количество элементов
func (s Set[T]) Size() int {
	return len(s)
}

func (s Set[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for v := range s {
			if !yield(v) {
				return
			}
		}
	}
}

// Extend adds every element of other to s in place.
func (s Set[T]) Extend(other Set[T]) {
	for v := range other {
		s[v] = empty{}
	}
}

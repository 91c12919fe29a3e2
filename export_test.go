package sqlbind

import "github.com/canonical/sqlbind/native"

func (n Nullable[T]) Indicator() native.Len {
	return n.indicator
}

func (t *Text[A]) Indicator() native.Len {
	return t.indicator
}

func (t *Text[A]) SetIndicator(ind native.Len) {
	t.indicator = ind
}

func (s *ParamSet[P]) Capacity() int {
	return cap(s.rows)
}

func (r *RowSet[C]) Capacity() int {
	return cap(r.buf)
}

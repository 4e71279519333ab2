package pipeline

import (
	"github.com/typedb/typedb-sub006/concept"
	"github.com/typedb/typedb-sub006/pattern"
	"github.com/typedb/typedb-sub006/row"
	"github.com/typedb/typedb-sub006/schema"
	"github.com/typedb/typedb-sub006/write"
)

// Insert applies a compiled insert executable for every input row and
// forwards the extended row.
type Insert struct {
	up     Stage
	x      *write.InsertExecutable
	writer *concept.Writer
	cache  *schema.Cache
	params *pattern.ParameterRegistry
	ctrl   *Control
}

func NewInsert(up Stage, x *write.InsertExecutable, writer *concept.Writer, cache *schema.Cache, params *pattern.ParameterRegistry, ctrl *Control) *Insert {
	return &Insert{up: up, x: x, writer: writer, cache: cache, params: params, ctrl: ctrl}
}

func (s *Insert) Next() (row.Row, bool, error) {
	if err := s.ctrl.check(); err != nil {
		return row.Row{}, false, err
	}
	in, ok, err := s.up.Next()
	if err != nil || !ok {
		return row.Row{}, false, err
	}
	out, err := s.x.Execute(s.writer, s.cache, s.params, in)
	if err != nil {
		return row.Row{}, false, err
	}
	return out, true, nil
}

func (s *Insert) Close() { s.up.Close() }

// Update applies a compiled update executable per input row.
type Update struct {
	up     Stage
	x      *write.UpdateExecutable
	writer *concept.Writer
	cache  *schema.Cache
	params *pattern.ParameterRegistry
	ctrl   *Control
}

func NewUpdate(up Stage, x *write.UpdateExecutable, writer *concept.Writer, cache *schema.Cache, params *pattern.ParameterRegistry, ctrl *Control) *Update {
	return &Update{up: up, x: x, writer: writer, cache: cache, params: params, ctrl: ctrl}
}

func (s *Update) Next() (row.Row, bool, error) {
	if err := s.ctrl.check(); err != nil {
		return row.Row{}, false, err
	}
	in, ok, err := s.up.Next()
	if err != nil || !ok {
		return row.Row{}, false, err
	}
	out, err := s.x.Execute(s.writer, s.cache, s.params, in)
	if err != nil {
		return row.Row{}, false, err
	}
	return out, true, nil
}

func (s *Update) Close() { s.up.Close() }

// Delete applies a compiled delete executable per input row.
type Delete struct {
	up     Stage
	x      *write.DeleteExecutable
	writer *concept.Writer
	cache  *schema.Cache
	ctrl   *Control
}

func NewDelete(up Stage, x *write.DeleteExecutable, writer *concept.Writer, cache *schema.Cache, ctrl *Control) *Delete {
	return &Delete{up: up, x: x, writer: writer, cache: cache, ctrl: ctrl}
}

func (s *Delete) Next() (row.Row, bool, error) {
	if err := s.ctrl.check(); err != nil {
		return row.Row{}, false, err
	}
	in, ok, err := s.up.Next()
	if err != nil || !ok {
		return row.Row{}, false, err
	}
	out, err := s.x.Execute(s.writer, s.cache, in)
	if err != nil {
		return row.Row{}, false, err
	}
	return out, true, nil
}

func (s *Delete) Close() { s.up.Close() }

package command

import (
	"fmt"
	"testing"

	"github.com/infinivision/mvbtree/btree"
	"github.com/infinivision/mvbtree/errmsg"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	calls []string
	kv    map[uint32]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{kv: make(map[uint32]string)}
}

func (s *fakeStore) call(format string, args ...interface{}) {
	s.calls = append(s.calls, fmt.Sprintf(format, args...))
}

func (s *fakeStore) Begin(addr string) (uint64, error) {
	s.call("begin %s", addr)
	return 7, nil
}

func (s *fakeStore) Commit(addr string) (uint64, error) {
	s.call("commit %s", addr)
	return 0, errmsg.NoTransaction
}

func (s *fakeStore) Abort(addr string) (uint64, error) {
	s.call("abort %s", addr)
	return 7, nil
}

func (s *fakeStore) Insert(addr string, k uint32, v string) error {
	s.call("insert %s %d %s", addr, k, v)
	if _, ok := s.kv[k]; ok {
		return errmsg.KeyExists
	}
	s.kv[k] = v
	return nil
}

func (s *fakeStore) Update(addr string, k uint32, v string) error {
	s.call("update %s %d %s", addr, k, v)
	if _, ok := s.kv[k]; !ok {
		return errmsg.NotExist
	}
	s.kv[k] = v
	return nil
}

func (s *fakeStore) Delete(addr string, k uint32) error {
	s.call("delete %s %d", addr, k)
	return errmsg.TransactionConflict
}

func (s *fakeStore) Select(addr string, k uint32) (string, error) {
	s.call("select %s %d", addr, k)
	v, ok := s.kv[k]
	if !ok {
		return "", errmsg.NotExist
	}
	return v, nil
}

func (s *fakeStore) DumpVersions(k uint32) ([]btree.Version, error) {
	three := uint64(3)
	return []btree.Version{{Value: "a", Xmin: 1, Xmax: &three}, {Value: "b c", Xmin: 3}}, nil
}

func (s *fakeStore) Checkpoint() error {
	s.call("checkpoint")
	return nil
}

func TestParse(t *testing.T) {
	c, err := Parse("  INSERT 42   hello   world ")
	require.NoError(t, err)
	require.Equal(t, Command{Op: Insert, Key: 42, Value: "hello world"}, c)
	require.Equal(t, []string{"insert", "42", "hello world"}, c.Tokens())
	require.Equal(t, "insert 42 hello world", c.String())

	c, err = Parse("select 4294967295")
	require.NoError(t, err)
	require.Equal(t, uint32(4294967295), c.Key)

	c, err = Parse("begin")
	require.NoError(t, err)
	require.Equal(t, Begin, c.Op)
	require.Equal(t, []string{"begin"}, c.Tokens())
}

func TestParseErrors(t *testing.T) {
	for line, want := range map[string]error{
		"":                  errmsg.InvalidArgument,
		"frobnicate 1":      errmsg.UnknownCommand,
		"insert 1":          errmsg.InvalidArgument,
		"insert x v":        errmsg.InvalidArgument,
		"select 4294967296": errmsg.InvalidArgument,
		"select -1":         errmsg.InvalidArgument,
		"delete":            errmsg.InvalidArgument,
		"dump 1 2":          errmsg.InvalidArgument,
		"commit now":        errmsg.InvalidArgument,
		"checkpoint please": errmsg.InvalidArgument,
		"insert 1 a\xffb":   errmsg.InvalidArgument,
		"update 1 \xff":     errmsg.InvalidArgument,
	} {
		_, err := Parse(line)
		require.ErrorIs(t, err, want, "%q", line)
	}
}

func TestRunReplies(t *testing.T) {
	s := newFakeStore()
	require.Equal(t, []string{"OK 7"}, Run(s, "c1", "begin"))
	require.Equal(t, []string{"OK"}, Run(s, "c1", "insert 1 one"))
	require.Equal(t, []string{"EXISTS"}, Run(s, "c1", "insert 1 uno"))
	require.Equal(t, []string{"VALUE one"}, Run(s, "c1", "select 1"))
	require.Equal(t, []string{"NOT_FOUND"}, Run(s, "c1", "select 2"))
	require.Equal(t, []string{"NOT_FOUND"}, Run(s, "c1", "update 2 two"))
	require.Equal(t, []string{"OK"}, Run(s, "c1", "update 1 two words"))
	require.Equal(t, []string{"VALUE two words"}, Run(s, "c1", "select 1"))
	require.Equal(t, []string{"ERR transaction conflict"}, Run(s, "c1", "delete 1"))
	require.Equal(t, []string{"ERR no active transaction"}, Run(s, "c1", "commit"))
	require.Equal(t, []string{"OK 7"}, Run(s, "c1", "abort"))
	require.Equal(t, []string{"OK"}, Run(s, "c1", "checkpoint"))
	require.Equal(t, []string{"VERSIONS 2", "1 3 a", "3 - b c"}, Run(s, "c1", "dump 1"))

	r := Run(s, "c1", "explode")
	require.Len(t, r, 1)
	require.Contains(t, r[0], "ERR unknown command")
}

func TestReplay(t *testing.T) {
	s := newFakeStore()
	require.NoError(t, Replay(s, []string{"10.0.0.1:99", "insert", "5", "a", "b"}))
	require.NoError(t, Replay(s, []string{"10.0.0.1:99", "insert", "5", "again"}))
	require.Equal(t, []string{"insert 10.0.0.1:99 5 a b", "insert 10.0.0.1:99 5 again"}, s.calls)

	require.ErrorIs(t, Replay(s, []string{"x"}), errmsg.MalformedRecord)
	require.ErrorIs(t, Replay(s, []string{"x", "select", "1"}), errmsg.MalformedRecord)
	require.ErrorIs(t, Replay(s, []string{"x", "insert", "k", "v"}), errmsg.MalformedRecord)
}

func TestMutates(t *testing.T) {
	for _, op := range []Op{Begin, Insert, Update, Delete, Commit, Abort} {
		require.True(t, op.Mutates(), op.String())
	}
	for _, op := range []Op{Select, Dump, Checkpoint} {
		require.False(t, op.Mutates(), op.String())
	}
	require.Equal(t, "op(42)", Op(42).String())
}

package db

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/infinivision/mvbtree/btree"
	"github.com/infinivision/mvbtree/command"
	"github.com/infinivision/mvbtree/constant"
	"github.com/infinivision/mvbtree/errmsg"
	"github.com/infinivision/mvbtree/snapshot"
	"github.com/stretchr/testify/require"
)

func testConfig(dir string) Config {
	return Config{
		DirName:             dir,
		LogWriter:           io.Discard,
		NodeSize:            constant.NodeSize,
		CheckPointCycle:     time.Hour,
		CheckPointThreshold: 1 << 20,
	}
}

func openDB(t *testing.T, dir string) *db {
	d, err := Open(testConfig(dir))
	require.NoError(t, err)
	return d
}

// crash drops d without the final checkpoint Close would run.
func crash(d *db) {
	d.Lock()
	d.closed = true
	d.Unlock()
	d.w.Close()
	d.lock.Close()
}

func TestAutocommit(t *testing.T) {
	d := openDB(t, filepath.Join(t.TempDir(), "db"))
	defer d.Close()

	require.NoError(t, d.Insert("c", 1, "a"))
	v, err := d.Select("c", 1)
	require.NoError(t, err)
	require.Equal(t, "a", v)

	require.ErrorIs(t, d.Insert("c", 1, "again"), errmsg.KeyExists)
	require.NoError(t, d.Update("c", 1, "b"))
	v, err = d.Select("other", 1)
	require.NoError(t, err)
	require.Equal(t, "b", v)

	require.ErrorIs(t, d.Update("c", 9, "x"), errmsg.NotExist)
	require.ErrorIs(t, d.Delete("c", 9), errmsg.NotExist)
	_, err = d.Select("c", 9)
	require.ErrorIs(t, err, errmsg.NotExist)

	require.NoError(t, d.Insert("c", 2, "gone"))
	require.NoError(t, d.Delete("c", 2))
	_, err = d.Select("c", 2)
	require.ErrorIs(t, err, errmsg.NotExist)

	_, ok := d.r.Current("c")
	require.False(t, ok)
	require.Empty(t, d.r.Active())
}

func TestIsolation(t *testing.T) {
	d := openDB(t, filepath.Join(t.TempDir(), "db"))
	defer d.Close()

	_, err := d.Begin("a")
	require.NoError(t, err)
	require.NoError(t, d.Insert("a", 1, "x"))
	_, err = d.Select("b", 1)
	require.ErrorIs(t, err, errmsg.NotExist)
	v, err := d.Select("a", 1)
	require.NoError(t, err)
	require.Equal(t, "x", v)
	_, err = d.Commit("a")
	require.NoError(t, err)

	_, err = d.Begin("r")
	require.NoError(t, err)
	require.NoError(t, d.Update("w", 1, "y"))
	v, err = d.Select("r", 1)
	require.NoError(t, err)
	require.Equal(t, "x", v)
	v, err = d.Select("b", 1)
	require.NoError(t, err)
	require.Equal(t, "y", v)
	_, err = d.Commit("r")
	require.NoError(t, err)
}

func TestUpdateTwiceInOneTransaction(t *testing.T) {
	d := openDB(t, filepath.Join(t.TempDir(), "db"))
	defer d.Close()

	require.NoError(t, d.Insert("c", 1, "a"))
	_, err := d.Begin("t")
	require.NoError(t, err)
	require.NoError(t, d.Update("t", 1, "b"))
	require.NoError(t, d.Update("t", 1, "c"))

	v, err := d.Select("t", 1)
	require.NoError(t, err)
	require.Equal(t, "c", v)
	v, err = d.Select("o", 1)
	require.NoError(t, err)
	require.Equal(t, "a", v)

	_, err = d.Commit("t")
	require.NoError(t, err)
	v, err = d.Select("o", 1)
	require.NoError(t, err)
	require.Equal(t, "c", v)
}

func TestConflict(t *testing.T) {
	d := openDB(t, filepath.Join(t.TempDir(), "db"))
	defer d.Close()

	require.NoError(t, d.Insert("c", 1, "x"))
	_, err := d.Begin("a")
	require.NoError(t, err)
	require.NoError(t, d.Update("a", 1, "z"))

	require.ErrorIs(t, d.Update("b", 1, "w"), errmsg.TransactionConflict)
	_, ok := d.r.Current("b")
	require.False(t, ok)

	_, err = d.Begin("b")
	require.NoError(t, err)
	require.ErrorIs(t, d.Delete("b", 1), errmsg.TransactionConflict)
	_, ok = d.r.Current("b")
	require.True(t, ok)

	_, err = d.Commit("a")
	require.NoError(t, err)
	require.NoError(t, d.Update("b", 1, "w"))
	_, err = d.Commit("b")
	require.NoError(t, err)
	v, err := d.Select("c", 1)
	require.NoError(t, err)
	require.Equal(t, "w", v)
}

func TestAbortRestores(t *testing.T) {
	d := openDB(t, filepath.Join(t.TempDir(), "db"))
	defer d.Close()

	require.NoError(t, d.Insert("c", 1, "x"))
	before, err := d.DumpVersions(1)
	require.NoError(t, err)

	_, err = d.Begin("a")
	require.NoError(t, err)
	require.NoError(t, d.Update("a", 1, "q"))
	require.NoError(t, d.Update("a", 1, "r"))
	require.NoError(t, d.Insert("a", 2, "n"))
	_, err = d.Abort("a")
	require.NoError(t, err)

	after, err := d.DumpVersions(1)
	require.NoError(t, err)
	require.Equal(t, before, after)
	_, err = d.Select("c", 2)
	require.ErrorIs(t, err, errmsg.NotExist)
	_, err = d.DumpVersions(2)
	require.ErrorIs(t, err, errmsg.NotExist)

	_, err = d.Abort("a")
	require.ErrorIs(t, err, errmsg.NoTransaction)
	_, err = d.Commit("a")
	require.ErrorIs(t, err, errmsg.NoTransaction)

	// the key created by the aborted transaction can be inserted again
	require.NoError(t, d.Insert("c", 2, "m"))
}

func TestRejectsBadAddress(t *testing.T) {
	d := openDB(t, filepath.Join(t.TempDir(), "db"))
	defer d.Close()

	require.ErrorIs(t, d.Insert("a b", 1, "x"), errmsg.InvalidArgument)
	_, err := d.Begin("")
	require.ErrorIs(t, err, errmsg.InvalidArgument)
}

func TestRejectsInvalidUTF8(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	d := openDB(t, dir)

	require.ErrorIs(t, d.Insert("c", 1, "a\xffb"), errmsg.InvalidArgument)
	_, err := d.DumpVersions(1)
	require.ErrorIs(t, err, errmsg.NotExist)
	require.NoError(t, d.Insert("c", 1, "héllo"))
	require.ErrorIs(t, d.Update("c", 1, "\xc3"), errmsg.InvalidArgument)
	require.Empty(t, d.r.Active())
	require.NoError(t, d.Close())

	d = openDB(t, dir)
	defer d.Close()
	v, err := d.Select("c", 1)
	require.NoError(t, err)
	require.Equal(t, "héllo", v)
}

func TestRecoverReplaysCommitted(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	d := openDB(t, dir)
	require.NoError(t, d.Insert("c", 1, "one"))
	require.NoError(t, d.Update("c", 1, "uno"))
	require.NoError(t, d.Insert("c", 3, "three"))
	require.NoError(t, d.Delete("c", 3))
	_, err := d.Begin("t")
	require.NoError(t, err)
	require.NoError(t, d.Insert("t", 2, "two"))
	_, err = d.Begin("u")
	require.NoError(t, err)
	require.NoError(t, d.Insert("u", 4, "four"))
	_, err = d.Commit("u")
	require.NoError(t, err)
	crash(d)

	d = openDB(t, dir)
	defer d.Close()
	v, err := d.Select("c", 1)
	require.NoError(t, err)
	require.Equal(t, "uno", v)
	v, err = d.Select("c", 4)
	require.NoError(t, err)
	require.Equal(t, "four", v)
	_, err = d.Select("c", 2)
	require.ErrorIs(t, err, errmsg.NotExist)
	_, err = d.Select("c", 3)
	require.ErrorIs(t, err, errmsg.NotExist)

	require.Empty(t, d.r.Active())
	_, err = d.Begin("t")
	require.NoError(t, err)
}

func TestRecoverAbortsOpenTransactions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	d := openDB(t, dir)
	_, err := d.Begin("t")
	require.NoError(t, err)
	require.NoError(t, d.Insert("t", 2, "two"))
	require.NoError(t, d.Insert("c", 1, "one"))
	crash(d)

	d = openDB(t, dir)
	defer d.Close()
	_, err = d.Select("c", 2)
	require.ErrorIs(t, err, errmsg.NotExist)
	v, err := d.Select("c", 1)
	require.NoError(t, err)
	require.Equal(t, "one", v)
	require.Empty(t, d.r.Addrs())

	data, err := os.ReadFile(filepath.Join(dir, constant.LogName))
	require.NoError(t, err)
	require.Empty(t, data)
}

func TestCheckpointKeepsOpenTransactions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	d := openDB(t, dir)

	_, err := d.Begin("t")
	require.NoError(t, err)
	require.NoError(t, d.Insert("t", 5, "five"))
	require.NoError(t, d.Insert("c", 6, "six"))
	require.NoError(t, d.Checkpoint())

	data, err := os.ReadFile(filepath.Join(dir, constant.LogName))
	require.NoError(t, err)
	require.Equal(t, "t begin\nt insert 5 five\n", string(data))

	root, err := snapshot.ReadFile(dir)
	require.NoError(t, err)
	tr, err := btree.FromRoot(btree.DefaultConfig(), root)
	require.NoError(t, err)
	_, ok := tr.FetchVersions(5, false)
	require.False(t, ok)
	vs, ok := tr.FetchVersions(6, false)
	require.True(t, ok)
	require.Len(t, vs, 1)
	require.Equal(t, "six", vs[0].Value)

	_, err = d.Commit("t")
	require.NoError(t, err)
	crash(d)

	d = openDB(t, dir)
	defer d.Close()
	v, err := d.Select("c", 5)
	require.NoError(t, err)
	require.Equal(t, "five", v)
	v, err = d.Select("c", 6)
	require.NoError(t, err)
	require.Equal(t, "six", v)
}

func TestCloseCheckpoints(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	d := openDB(t, dir)
	for i := uint32(0); i < 50; i++ {
		require.NoError(t, d.Insert("c", i, "v"))
	}
	require.NoError(t, d.Close())

	data, err := os.ReadFile(filepath.Join(dir, constant.LogName))
	require.NoError(t, err)
	require.Empty(t, data)
	root, err := snapshot.ReadFile(dir)
	require.NoError(t, err)
	tr, err := btree.FromRoot(btree.DefaultConfig(), root)
	require.NoError(t, err)
	require.Equal(t, 50, tr.Len())
	require.NoError(t, tr.Check())

	d = openDB(t, dir)
	defer d.Close()
	require.Equal(t, 50, d.Tree().Len())
	require.Less(t, uint64(50), d.r.Next())
}

func TestDirLocked(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	d := openDB(t, dir)
	_, err := Open(testConfig(dir))
	require.ErrorIs(t, err, errmsg.DirLocked)
	require.NoError(t, d.Close())

	d = openDB(t, dir)
	require.NoError(t, d.Close())
}

func TestClosed(t *testing.T) {
	d := openDB(t, filepath.Join(t.TempDir(), "db"))
	require.NoError(t, d.Close())
	require.ErrorIs(t, d.Close(), errmsg.Closed)
	require.ErrorIs(t, d.Insert("c", 1, "x"), errmsg.Closed)
	_, err := d.Select("c", 1)
	require.ErrorIs(t, err, errmsg.Closed)
	_, err = d.Begin("c")
	require.ErrorIs(t, err, errmsg.Closed)
	require.ErrorIs(t, d.Checkpoint(), errmsg.Closed)
}

func TestGarbageAndSnapshot(t *testing.T) {
	d := openDB(t, filepath.Join(t.TempDir(), "db"))
	defer d.Close()

	require.NoError(t, d.Insert("c", 1, "a"))
	require.NoError(t, d.Update("c", 1, "b"))
	require.NoError(t, d.Insert("c", 3, "x"))
	require.NoError(t, d.Update("c", 3, "y"))
	horizon := d.r.Last()
	_, err := d.Begin("t")
	require.NoError(t, err)
	require.NoError(t, d.Insert("t", 2, "open"))

	snap := d.ExtractSnapshot(horizon)
	_, ok := snap.FetchVersions(2, false)
	require.False(t, ok)

	oldest, ok := d.r.Oldest()
	require.True(t, ok)
	require.Equal(t, 2, d.CollectGarbage(oldest))
	vs, err := d.DumpVersions(1)
	require.NoError(t, err)
	require.Len(t, vs, 1)
	require.Equal(t, "b", vs[0].Value)
}

func TestCommandsAgainstDB(t *testing.T) {
	d := openDB(t, filepath.Join(t.TempDir(), "db"))
	defer d.Close()

	require.Equal(t, []string{command.OK}, command.Run(d, "c", "insert 7 seven"))
	require.Equal(t, []string{command.Exists}, command.Run(d, "c", "INSERT 7 again"))
	require.Equal(t, []string{"VALUE seven"}, command.Run(d, "c", "select 7"))
	require.Equal(t, []string{command.NotFound}, command.Run(d, "c", "select 8"))

	rs := command.Run(d, "c", "dump 7")
	require.Len(t, rs, 2)
	require.Equal(t, "VERSIONS 1", rs[0])

	rs = command.Run(d, "c", "begin")
	require.Len(t, rs, 1)
	require.Contains(t, rs[0], command.OK+" ")
	require.Equal(t, []string{command.OK}, command.Run(d, "c", "checkpoint"))
}

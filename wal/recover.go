package wal

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/infinivision/mvbtree/constant"
)

// Recover reads the log under dir and returns its records grouped so that
// every group ends with a commit record. A torn final line is ignored;
// complete records after the last commit are dropped and counted.
func Recover(dir string) ([][][]string, int, error) {
	rs, err := load(filepath.Join(dir, constant.LogName))
	if err != nil {
		return nil, 0, err
	}
	var gs [][][]string
	var g [][]string
	for _, r := range rs {
		g = append(g, r)
		if isCommit(r) {
			gs = append(gs, g)
			g = nil
		}
	}
	return gs, len(g), nil
}

func isCommit(r []string) bool {
	return len(r) > 1 && r[1] == constant.CommitToken
}

func load(path string) ([][]string, error) {
	var rs [][]string

	fp, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	rd := bufio.NewReader(fp)
	for {
		line, err := rd.ReadString('\n')
		if err == io.EOF {
			return rs, nil // a line without its newline was never acknowledged
		}
		if err != nil {
			return nil, err
		}
		if line = strings.TrimRight(line, "\n"); line == "" {
			continue
		}
		rs = append(rs, strings.Split(line, " "))
	}
}

// Package ztest contains helper functions that are useful for writing tests.
package ztest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"testing"
)

// ErrorContains checks if the error message in have contains the text in
// want.
//
// This is safe when have is nil. Use an empty string for want if you want to
// test that err is nil.
func ErrorContains(have error, want string) bool {
	if have == nil {
		return want == ""
	}
	if want == "" {
		return false
	}
	return strings.Contains(have.Error(), want)
}

// Parallel signals that this test is to be run in parallel.
//
// This is identical to testing.T.Parallel() but also returns the table test to
// capture it in the loop:
//
//	tests := []struct {
//	   ...
//	}
//
//	for _, tt := range tests {
//	   t.Run("", func(t *testing.T) {
//	     tt := ztest.Parallel(t, tt)
//	   })
//	}
//
// Just saves one line vs.
//
//	t.Run("", func(t *testing.T) {
//	  tt := tt
//	  t.Parallel()
//	})
func Parallel[TT any](t *testing.T, tt TT) TT {
	t.Parallel()
	return tt
}

// Replace pieces of text with a placeholder string.
//
// This is use to test output which isn't stable, for example because it
// contains times:
//
//	ztest.Replace("Time: 1161 seconds", `Time: (\d+) s`)
//
// Will result in "Time: XXX seconds".
//
// The number of replacement characters is equal to the input, unless the
// pattern contains "+" or "*" in which case it's always replaced by three
// characters.
func Replace(s string, patt ...string) string {
	type x struct {
		start, end int
		varWidth   bool
	}
	var where []x

	// Collect what to replace first so the replacements can be applied from
	// the end of the string backwards without shifting earlier offsets.
	for _, p := range patt {
		varWidth := false
		if i := strings.IndexAny(p, "+*"); i >= 0 {
			varWidth = i == 0 || p[i-1] != '\\'
		}

		for _, m := range regexp.MustCompile(p).FindAllStringSubmatchIndex(s, -1) {
			off := 2
			if len(m) == 2 { // No groups, replace everything.
				off = 0
			}

			for i := off; len(m) > i; i += 2 {
				where = append(where, x{
					start:    m[i],
					end:      m[i+1],
					varWidth: varWidth,
				})
			}
		}
	}

	sort.Slice(where, func(i, j int) bool { return where[i].start > where[j].start })
	for _, w := range where {
		l := 3
		if !w.varWidth {
			l = w.end - w.start
		}
		s = s[:w.start] + strings.Repeat("X", l) + s[w.end:]
	}
	return s
}

// Read data from a file.
func Read(t *testing.T, paths ...string) []byte {
	t.Helper()

	path := filepath.Join(paths...)
	file, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ztest.Read: cannot read %v: %v", path, err)
	}
	return file
}

// TempFile creates a new temporary file and returns the path.
//
// The name is the filename to use; a "*" will be replaced with a random string,
// if it doesn't then it will create a file with exactly that name. If name is
// empty then it will use "ztest.*".
//
// The file will be removed when the test ends.
func TempFile(t *testing.T, name, data string) string {
	t.Helper()

	if name == "" {
		name = "ztest.*"
	}

	dir := t.TempDir()
	var (
		fp  *os.File
		err error
	)
	if strings.Contains(name, "*") {
		fp, err = os.CreateTemp(dir, name)
	} else {
		fp, err = os.Create(filepath.Join(dir, name))
	}
	if err != nil {
		t.Fatalf("ztest.TempFile: could not create file in %v: %v", dir, err)
	}

	defer func() {
		err := fp.Close()
		if err != nil {
			t.Fatalf("ztest.TempFile: close: %v", err)
		}
	}()

	_, err = fp.WriteString(data)
	if err != nil {
		t.Fatalf("ztest.TempFile: write: %v", err)
	}

	t.Cleanup(func() {
		err := os.Remove(fp.Name())
		if err != nil {
			t.Errorf("ztest.TempFile: cannot remove %#v: %v", fp.Name(), err)
		}
	})

	return fp.Name()
}

// NormalizeIndent removes tab indentation from every line.
//
// This is useful for "inline" multiline strings:
//
//	  cases := []struct {
//	      string in
//	  }{
//	      `
//		 	    Hello,
//		 	    world!
//	      `,
//	  }
//
// This is nice and readable, but the downside is that every line will now have
// two extra tabs. This will remove those two tabs from every line.
//
// The amount of tabs to remove is based only on the first line, any further
// tabs will be preserved.
func NormalizeIndent(in string) string {
	indent := 0
	for _, c := range strings.TrimLeft(in, "\n") {
		if c != '\t' {
			break
		}
		indent++
	}

	r := ""
	for _, line := range strings.Split(in, "\n") {
		r += strings.Replace(line, "\t", "", indent) + "\n"
	}

	return strings.TrimSpace(r)
}

// R recovers a panic and cals t.Fatal().
//
// This is useful especially in subtests when you want to run a top-level defer.
// Subtests are run in their own goroutine, so those aren't called on regular
// panics. For example:
//
//	func TestX(t *testing.T) {
//	    clean := someSetup()
//	    defer clean()
//
//	    t.Run("sub", func(t *testing.T) {
//	        panic("oh noes")
//	    })
//	}
//
// The defer is never called here. To fix it, call this function in all
// subtests:
//
//	t.Run("sub", func(t *testing.T) {
//	    defer ztest.R(t)
//	    panic("oh noes")
//	})
//
// See: https://github.com/golang/go/issues/20394
func R(t *testing.T) {
	t.Helper()
	r := recover()
	if r != nil {
		t.Fatalf("panic recover: %v", r)
	}
}

// Diff produces a small unified-diff-style rendering of the difference
// between have and want, for use in table test failure messages. It returns
// an empty string if have == want.
func Diff(have, want string) string {
	if have == want {
		return ""
	}

	haveLines := strings.Split(have, "\n")
	wantLines := strings.Split(want, "\n")

	n := len(haveLines)
	m := len(wantLines)
	hunkA, hunkB := "1", "1"
	if n != 1 {
		hunkA = fmt.Sprintf("1,%d", n)
	}
	if m != 1 {
		hunkB = fmt.Sprintf("1,%d", m)
	}

	var b strings.Builder
	b.WriteString("\n--- have\n+++ want\n")
	fmt.Fprintf(&b, "@@ -%s +%s @@\n", hunkA, hunkB)

	max := n
	if m > max {
		max = m
	}
	for i := 0; i < max; i++ {
		switch {
		case i < n && i < m && haveLines[i] == wantLines[i]:
			b.WriteString("  " + haveLines[i] + "\n")
		default:
			if i < n {
				b.WriteString("- " + haveLines[i] + "\n")
			}
			if i < m {
				b.WriteString("+ " + wantLines[i] + "\n")
			}
		}
	}
	return b.String()
}

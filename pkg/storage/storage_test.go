package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"resume.pdf":            "resume.pdf",
		"../../etc/passwd":      ".._.._etc_passwd",
		`C:\Users\me\cv.docx`:   "C:_Users_me_cv.docx",
		"  spaced name.txt  ":   "spaced name.txt",
		"bad\x00\x1fname\n.txt": "badname.txt",
		"":                      "unknown",
		"   ":                   "unknown",
		"..":                    "unknown",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeFileName(in), "input %q", in)
	}
}

func TestObjectName(t *testing.T) {
	at := time.UnixMilli(1717243200123)
	assert.Equal(t, "1717243200123_my_cv.pdf", ObjectName(at, "my/cv.pdf"))
}

func TestPutUniqueAdvancesOnCollision(t *testing.T) {
	at := time.UnixMilli(1000)
	taken := map[string]bool{
		"1000_cv.pdf": true,
		"1001_cv.pdf": true,
	}
	var tried []string
	name, err := PutUnique(context.Background(), at, "cv.pdf", func(_ context.Context, name string) error {
		tried = append(tried, name)
		if taken[name] {
			return ErrObjectExists
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "1002_cv.pdf", name)
	assert.Equal(t, []string{"1000_cv.pdf", "1001_cv.pdf", "1002_cv.pdf"}, tried)
}

func TestPutUniqueGivesUp(t *testing.T) {
	calls := 0
	_, err := PutUnique(context.Background(), time.UnixMilli(1), "cv.pdf", func(context.Context, string) error {
		calls++
		return ErrObjectExists
	})
	require.ErrorIs(t, err, ErrObjectExists)
	assert.Equal(t, MaxNameAttempts, calls)
}

func TestPutUniqueReturnsOtherErrors(t *testing.T) {
	boom := errors.New("disk full")
	_, err := PutUnique(context.Background(), time.UnixMilli(1), "cv.pdf", func(context.Context, string) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
}

func TestSplitURI(t *testing.T) {
	bucket, key, err := SplitURI("s3://resumes/uploads/1_cv.pdf", "s3")
	require.NoError(t, err)
	assert.Equal(t, "resumes", bucket)
	assert.Equal(t, "uploads/1_cv.pdf", key)

	_, _, err = SplitURI("gs://resumes/x", "s3")
	require.Error(t, err)
	_, _, err = SplitURI("s3://resumes", "s3")
	require.Error(t, err)
}

func TestJoinKey(t *testing.T) {
	assert.Equal(t, "uploads/1_cv.pdf", JoinKey("/uploads/", "1_cv.pdf"))
	assert.Equal(t, "1_cv.pdf", JoinKey("", "1_cv.pdf"))
}

func TestTruncateNameKeepsExtension(t *testing.T) {
	assert.Equal(t, "short.pdf", TruncateName("short.pdf", 20))
	assert.Equal(t, "abcde.pdf", TruncateName("abcdefghij.pdf", 9))
	// an over-long extension is not treated as one
	assert.Equal(t, "name.aaaaa", TruncateName("name."+strings.Repeat("a", 30), 10))
	// "é" is two bytes and is dropped rather than split
	assert.Equal(t, "caf.txt", TruncateName("café-au-lait.txt", 8))
}

func TestSanitizeFileNameCapsLength(t *testing.T) {
	got := SanitizeFileName(strings.Repeat("x", 500) + ".docx")
	assert.Len(t, got, MaxNameBytes)
	assert.True(t, strings.HasSuffix(got, ".docx"))
}

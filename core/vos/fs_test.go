package vos

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
)

func TestLookPath(t *testing.T) {
	fsys := afero.NewMemMapFs()
	afero.WriteFile(fsys, "/usr/bin/ls", nil, 0755)
	afero.WriteFile(fsys, "/bin/ls", nil, 0755)
	afero.WriteFile(fsys, "/bin/data", nil, 0644)
	fsys.MkdirAll("/bin/dir", 0755)

	cases := map[string]struct {
		path     string
		file     string
		expected string
		err      error
	}{
		"first match wins":  {"/usr/bin:/bin", "ls", "/usr/bin/ls", nil},
		"order":             {"/bin:/usr/bin", "ls", "/bin/ls", nil},
		"missing":           {"/bin", "nope", "", ErrNotFound},
		"not executable":    {"/bin", "data", "", ErrNotFound},
		"directory":         {"/bin", "dir", "", ErrNotFound},
		"slash direct":      {"", "/bin/ls", "/bin/ls", nil},
		"slash not exec":    {"/bin", "/bin/data", "", fs.ErrPermission},
		"slash missing":     {"/bin", "/bin/nope", "", ErrNotFound},
		"empty name":        {"/bin", "", "", ErrNotFound},
		"empty path is cwd": {"", "ls", "", ErrNotFound},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			actual, err := LookPath(fsys, tc.path, tc.file)
			assert.Equal(t, tc.expected, actual)
			if tc.err == nil {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, tc.err), "got %v", err)
			}
		})
	}
}

func TestProcStatus_ExitStatus(t *testing.T) {
	assert.Equal(t, 3, ExitedWith(1, 3).ExitStatus())
	assert.Equal(t, 137, ProcStatus{Signaled: true, Signal: 9}.ExitStatus())
	assert.Equal(t, 148, ProcStatus{Stopped: true, Signal: 20}.ExitStatus())
}

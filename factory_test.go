package extbuild

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubLookPath makes only the named tools resolvable, at /usr/bin/<name>.
func stubLookPath(t *testing.T, available ...string) {
	t.Helper()
	orig := execLookPath
	t.Cleanup(func() { execLookPath = orig })

	found := make(map[string]bool, len(available))
	for _, name := range available {
		found[name] = true
	}
	execLookPath = func(name string) (string, error) {
		if found[name] {
			return "/usr/bin/" + name, nil
		}
		return "", errors.Newf("%s: executable file not found in $PATH", name)
	}
}

func TestToolchainFactoryNames(t *testing.T) {
	assert.Equal(t, []string{"MSVC", "Darwin", "Unix"}, NewToolchainFactory().Names())
}

func TestToolchainFactorySelection(t *testing.T) {
	stubLookPath(t, "gcc", "g++", "clang", "clang++")

	tests := []struct {
		name     string
		platform Platform
		expected string
	}{
		{name: "msvc", platform: Platform{OS: "windows", Family: FamilyMSVC}, expected: "MSVC"},
		{name: "darwin", platform: Platform{OS: "darwin", Family: FamilyUnix}, expected: "Darwin"},
		{name: "linux", platform: Platform{OS: "linux", Family: FamilyUnix}, expected: "Unix"},
		{name: "mingw", platform: Platform{OS: "windows", Family: FamilyMinGW}, expected: "Unix"},
		{name: "cygwin", platform: Platform{OS: "windows", Family: FamilyCygwin}, expected: "Unix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc, err := NewToolchainFactory().ToolchainFor(tt.platform, Environment{})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, tc.Name())
		})
	}
}

func TestToolchainFactoryCustomRegistration(t *testing.T) {
	factory := &ToolchainFactory{}
	factory.Register("Only", Platform.IsDarwin, func(Platform, Environment) (*CommandToolchain, error) {
		return NewUnixToolchain("cc", "c++"), nil
	})

	_, err := factory.ToolchainFor(Platform{OS: "linux", Family: FamilyUnix}, Environment{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoToolchain))
	assert.Contains(t, err.Error(), "linux/unix")
}

func TestFindCompilers(t *testing.T) {
	tests := []struct {
		name        string
		available   []string
		env         Environment
		expectedCC  string
		expectedCXX string
		expectErr   bool
	}{
		{
			name:        "environment wins",
			available:   []string{"cc", "c++"},
			env:         Environment{CC: "clang-17", CXX: "clang++-17"},
			expectedCC:  "clang-17",
			expectedCXX: "clang++-17",
		},
		{
			name:        "first common compiler in PATH",
			available:   []string{"gcc", "clang", "clang++"},
			expectedCC:  "/usr/bin/gcc",
			expectedCXX: "/usr/bin/clang++",
		},
		{
			name:        "only a C compiler",
			available:   []string{"cc"},
			expectedCC:  "/usr/bin/cc",
			expectedCXX: "/usr/bin/cc",
		},
		{
			name:        "only a C++ compiler",
			available:   []string{"g++"},
			expectedCC:  "/usr/bin/g++",
			expectedCXX: "/usr/bin/g++",
		},
		{
			name:        "CC set, CXX found",
			available:   []string{"c++"},
			env:         Environment{CC: "ccache cc"},
			expectedCC:  "ccache cc",
			expectedCXX: "/usr/bin/c++",
		},
		{
			name:      "nothing",
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubLookPath(t, tt.available...)

			cc, cxx, err := findCompilers(tt.env)
			if tt.expectErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrNoToolchain))
				assert.Contains(t, errors.FlattenHints(err), "set CC and CXX")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedCC, cc)
			assert.Equal(t, tt.expectedCXX, cxx)
		})
	}
}

func TestToolchainForWithoutCompilers(t *testing.T) {
	stubLookPath(t)

	_, err := NewToolchainFactory().ToolchainFor(Platform{OS: "linux", Family: FamilyUnix}, Environment{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoToolchain))
}

func TestCheckRequiredTools(t *testing.T) {
	stubLookPath(t, "cc", "clang")

	tests := []struct {
		name         string
		requirements []ToolRequirement
		expectedErr  string
	}{
		{
			name:         "all present",
			requirements: []ToolRequirement{{Name: "cc", Purpose: "C compiler"}},
		},
		{
			name:         "several present",
			requirements: []ToolRequirement{{Name: "cc"}, {Name: "clang", Purpose: "C++ compiler"}},
		},
		{
			name:         "one missing",
			requirements: []ToolRequirement{{Name: "cl", Purpose: "MSVC C/C++ compiler"}},
			expectedErr:  "cl (MSVC C/C++ compiler) not found in PATH",
		},
		{
			name: "several missing",
			requirements: []ToolRequirement{
				{Name: "cl", Purpose: "MSVC C/C++ compiler"},
				{Name: "link"},
			},
			expectedErr: "missing required tools: cl (MSVC C/C++ compiler), link",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckRequiredTools(tt.requirements)
			if tt.expectedErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.expectedErr)
		})
	}
}

func TestBuildChecksTools(t *testing.T) {
	stubLookPath(t)

	o := NewOrchestrator(NewUnixToolchain("gcc", "g++"), Platform{OS: "linux", Family: FamilyUnix}, Environment{})
	results, err := o.Build(testContext(t), []*Extension{DefaultExtension()}, &BuildConfig{})

	require.Error(t, err)
	assert.Nil(t, results)
	assert.Contains(t, err.Error(), "build tools missing")
	assert.Contains(t, errors.FlattenHints(err), "set CC and CXX")
}

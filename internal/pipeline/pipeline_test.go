package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Iron-Ham/mailcd/internal/errors"
)

const samplePipeline = `
inbox:
  TOOLCHAIN:
    tag: stable
stages:
  deploy:
    inbox:
      APP:
        tag: [release, linux]
    steps:
      - ./deploy.sh
  build:
    node:
      containerfile: windows:ci/Containerfile
    inbox:
      sdk:
        id: SDK
        tag: latest
    steps:
      - make all
    outbox:
      APP:
        - "out/** -> bin"
        - "README.md"
  lint:
    steps:
      - golint ./...
outbox:
  REPORT: "reports/*.xml -> /"
clean:
  - "*.o"
`

func TestParse(t *testing.T) {
	p, err := Parse([]byte(samplePipeline))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	names := make([]string, 0, len(p.Stages))
	for _, s := range p.Stages {
		names = append(names, s.Name)
	}
	if diff := cmp.Diff([]string{"deploy", "build", "lint"}, names); diff != "" {
		t.Errorf("stage order mismatch (-want +got):\n%s", diff)
	}

	build, ok := p.Stage("build")
	if !ok {
		t.Fatal("build stage missing")
	}
	if build.Node == nil || build.Node.OS != OSWindows || build.Node.Containerfile != "ci/Containerfile" {
		t.Errorf("unexpected node: %+v", build.Node)
	}
	if diff := cmp.Diff(Inbox{{Name: "sdk", ID: "SDK", Tag: Labels{"latest"}}}, build.Inbox); diff != "" {
		t.Errorf("build inbox mismatch (-want +got):\n%s", diff)
	}
	wantOutbox := Outbox{{
		StorageID: "APP",
		Rules: []CopyRule{
			{Source: "out/**", Dest: "bin"},
			{Source: "README.md", Dest: ""},
		},
	}}
	if diff := cmp.Diff(wantOutbox, build.Outbox); diff != "" {
		t.Errorf("build outbox mismatch (-want +got):\n%s", diff)
	}

	deploy, _ := p.Stage("deploy")
	if diff := cmp.Diff(Labels{"release", "linux"}, deploy.Inbox[0].Tag); diff != "" {
		t.Errorf("deploy tags mismatch (-want +got):\n%s", diff)
	}
	if deploy.Node != nil {
		t.Error("deploy should run locally")
	}

	if len(p.Outbox) != 1 || p.Outbox[0].Rules[0].Source != "reports/*.xml" {
		t.Errorf("pipeline outbox = %+v", p.Outbox)
	}
	if p.Inbox[0].StorageID() != "TOOLCHAIN" {
		t.Errorf("pipeline inbox = %+v", p.Inbox)
	}
	if diff := cmp.Diff([]string{"*.o"}, p.Clean); diff != "" {
		t.Errorf("clean mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"stages not a mapping": "stages: [a, b]\n",
		"duplicate stage":      "stages:\n  a: {}\n  a: {}\n",
		"rule without source":  "stages:\n  a:\n    outbox:\n      X:\n        - \" -> bin\"\n",
		"slot without tag":     "stages:\n  a:\n    inbox:\n      X: {}\n",
		"empty step":           "stages:\n  a:\n    steps: [\"\"]\n",
		"bad storage id":       "inbox:\n  \"a/b\":\n    tag: x\n",
		"node without path":    "stages:\n  a:\n    node:\n      containerfile: \"linux:\"\n",
		"tag is a mapping":     "inbox:\n  X:\n    tag: {a: b}\n",
		"not yaml":             "stages: [\n",
		"slot shadows setting": "inbox:\n  STORE:\n    id: APP\n    tag: x\n",
		"stage slot shadows":   "stages:\n  a:\n    inbox:\n      workspace_local: {id: APP, tag: x}\n",
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			if !errors.Is(err, errors.ErrInvalidPipeline) {
				t.Fatalf("expected ErrInvalidPipeline, got %v", err)
			}
			if errors.ExitCode(err) != errors.ExitInvalidValue {
				t.Errorf("ExitCode = %d, want %d", errors.ExitCode(err), errors.ExitInvalidValue)
			}
		})
	}
}

func TestRootVar(t *testing.T) {
	if got := RootVar("my-lib.v2"); got != "MB_my_lib_v2_ROOT" {
		t.Errorf("RootVar = %q", got)
	}
	if got := RootRelPathVar("APP"); got != "MB_APP_ROOT_RELPATH" {
		t.Errorf("RootRelPathVar = %q", got)
	}
}

func TestValidate_SlotShadowingSettingNamesIt(t *testing.T) {
	_, err := Parse([]byte("inbox:\n  STORE:\n    id: APP\n    tag: x\n"))
	if !errors.Is(err, errors.ErrInvalidPipeline) {
		t.Fatalf("expected ErrInvalidPipeline, got %v", err)
	}
	for _, want := range []string{"MB_STORE_ROOT", "store.root"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestParse_EmptyStageIsValid(t *testing.T) {
	p, err := Parse([]byte("stages:\n  noop:\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(p.Stages) != 1 || p.Stages[0].Name != "noop" {
		t.Errorf("unexpected stages: %+v", p.Stages)
	}
}

func TestLoad(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "pipeline.yml"))
		if !errors.Is(err, errors.ErrPipelineNotFound) {
			t.Errorf("expected ErrPipelineNotFound, got %v", err)
		}
	})

	t.Run("records path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pipeline.yml")
		if err := os.WriteFile(path, []byte(samplePipeline), 0644); err != nil {
			t.Fatal(err)
		}
		p, err := Load(path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if p.Path != path {
			t.Errorf("Path = %q, want %q", p.Path, path)
		}
	})
}

func TestParseCopyRule(t *testing.T) {
	tests := []struct {
		in       string
		want     CopyRule
		wantDest string
		wantErr  bool
	}{
		{in: "build/** -> /", want: CopyRule{Source: "build/**", Dest: "/"}, wantDest: ""},
		{in: "./out/*.bin->bin/x64", want: CopyRule{Source: "out/*.bin", Dest: "bin/x64"}, wantDest: "bin/x64"},
		{in: `dist\*.zip -> \pkg`, want: CopyRule{Source: "dist/*.zip", Dest: `\pkg`}, wantDest: "pkg"},
		{in: "a.txt -> ../../escape", want: CopyRule{Source: "a.txt", Dest: "../../escape"}, wantDest: "escape"},
		{in: "README.md", want: CopyRule{Source: "README.md"}, wantDest: ""},
		{in: " -> bin", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCopyRule(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCopyRule failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
			if got.DestDir() != tt.wantDest {
				t.Errorf("DestDir() = %q, want %q", got.DestDir(), tt.wantDest)
			}
		})
	}
}

func TestParseNode(t *testing.T) {
	tests := []struct {
		ref      string
		wantOS   string
		wantPath string
		platform string
	}{
		{"ci/Containerfile", "", "ci/Containerfile", OSLinux},
		{"linux:ci/Containerfile", OSLinux, "ci/Containerfile", OSLinux},
		{"Windows:ci\\win.Dockerfile", OSWindows, "ci\\win.Dockerfile", OSWindows},
		{`C:\ci\Containerfile`, "", `C:\ci\Containerfile`, OSLinux},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			n, err := ParseNode(tt.ref)
			if err != nil {
				t.Fatalf("ParseNode failed: %v", err)
			}
			if n.OS != tt.wantOS || n.Containerfile != tt.wantPath {
				t.Errorf("got %+v", n)
			}
			if n.Platform("") != tt.platform {
				t.Errorf("Platform() = %q, want %q", n.Platform(""), tt.platform)
			}
		})
	}

	n, _ := ParseNode("ci/Containerfile")
	if n.Platform(OSWindows) != OSWindows {
		t.Error("default OS should apply when the reference names none")
	}
}

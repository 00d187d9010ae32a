package version

// Values are injected at build time with -ldflags.
var (
	Version   = "dev"
	Built     = ""
	GitCommit = ""
)

type Info struct {
	Version   string `json:"version"`
	Built     string `json:"built,omitempty"`
	GitCommit string `json:"git_commit,omitempty"`
}

func Get() Info {
	return Info{
		Version:   Version,
		Built:     Built,
		GitCommit: GitCommit,
	}
}

// String renders the version the way the CLI prints it.
func (info Info) String() string {
	out := info.Version
	if info.GitCommit != "" {
		out += " (" + info.GitCommit + ")"
	}
	if info.Built != "" {
		out += " built " + info.Built
	}
	return out
}

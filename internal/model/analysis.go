package model

// Summary aggregates the issue counts of an analysis run.
type Summary struct {
	TotalFiles      int `json:"totalFiles"`
	TotalIssues     int `json:"totalIssues"`
	CriticalIssues  int `json:"criticalIssues"`
	HighIssues      int `json:"highIssues"`
	MediumIssues    int `json:"mediumIssues"`
	LowIssues       int `json:"lowIssues"`
	FilesWithIssues int `json:"filesWithIssues"`
	OverallScore    int `json:"overallScore"`
}

// NodeType distinguishes folders from files in the result tree.
type NodeType string

const (
	NodeFolder NodeType = "folder"
	NodeFile   NodeType = "file"
)

// FileNode is a folder or a file in the analysed file structure.
type FileNode struct {
	Type     NodeType   `json:"type"`
	Name     string     `json:"name"`
	Children []FileNode `json:"children,omitempty"` // folders only
	Language string     `json:"language,omitempty"` // files only
	Size     int64      `json:"size,omitempty"`
	Issues   []Issue    `json:"issues,omitempty"`
}

// IsFolder reports whether the node is a folder.
func (n FileNode) IsFolder() bool {
	return n.Type == NodeFolder
}

// AnalysisResult is the most recent structured analysis. It is always
// replaced as a whole.
type AnalysisResult struct {
	Summary       Summary    `json:"summary"`
	FileStructure []FileNode `json:"fileStructure"`
	ModelUsed     string     `json:"modelUsed,omitempty"`
}

// FileEntry is a file leaf together with its slash-separated path.
type FileEntry struct {
	Path string
	Node FileNode
}

// Files walks the tree depth-first and returns every file leaf in order.
func (r *AnalysisResult) Files() []FileEntry {
	if r == nil {
		return nil
	}
	var out []FileEntry
	var walk func(prefix string, nodes []FileNode)
	walk = func(prefix string, nodes []FileNode) {
		for _, n := range nodes {
			p := n.Name
			if prefix != "" {
				p = prefix + "/" + n.Name
			}
			if n.IsFolder() {
				walk(p, n.Children)
				continue
			}
			out = append(out, FileEntry{Path: p, Node: n})
		}
	}
	walk("", r.FileStructure)
	return out
}

// Summarize recomputes the summary from the file tree. The score assumes at
// most 20 issues per file and falls linearly to 0.
func (r *AnalysisResult) Summarize() Summary {
	var s Summary
	for _, f := range r.Files() {
		s.TotalFiles++
		if len(f.Node.Issues) > 0 {
			s.FilesWithIssues++
		}
		for _, is := range f.Node.Issues {
			s.TotalIssues++
			switch is.Severity {
			case SeverityCritical:
				s.CriticalIssues++
			case SeverityHigh:
				s.HighIssues++
			case SeverityMedium:
				s.MediumIssues++
			default:
				s.LowIssues++
			}
		}
	}
	maxIssues := s.TotalFiles * 20
	if maxIssues < 1 {
		maxIssues = 1
	}
	s.OverallScore = 100 - s.TotalIssues*100/maxIssues
	if s.OverallScore < 0 {
		s.OverallScore = 0
	}
	return s
}

// InsertFile places leaf at path inside nodes, creating folders as needed,
// and returns the updated slice. The leaf takes the last path element as its
// name. Existing nodes are copied, never modified.
func InsertFile(nodes []FileNode, path []string, leaf FileNode) []FileNode {
	if len(path) == 0 {
		return nodes
	}
	out := make([]FileNode, len(nodes), len(nodes)+1)
	copy(out, nodes)
	if len(path) == 1 {
		leaf.Name = path[0]
		leaf.Type = NodeFile
		return append(out, leaf)
	}
	for i, n := range out {
		if n.IsFolder() && n.Name == path[0] {
			out[i].Children = InsertFile(n.Children, path[1:], leaf)
			return out
		}
	}
	return append(out, FileNode{
		Type:     NodeFolder,
		Name:     path[0],
		Children: InsertFile(nil, path[1:], leaf),
	})
}

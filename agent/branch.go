package agent

// buildBranchPath joins parent and child branch segments with a dot. Either
// side may be empty.
func buildBranchPath(parent, child string) string {
	switch {
	case parent == "":
		return child
	case child == "":
		return parent
	default:
		return parent + "." + child
	}
}

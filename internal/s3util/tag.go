package s3util

// projectTag is the URL-encoded object tagging string used for cost allocation.
const projectTag = "Project=line-sort"

// ProjectTagging returns the tagging string for PutObjectInput.Tagging.
func ProjectTagging() *string {
	t := projectTag
	return &t
}

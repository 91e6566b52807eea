package subissues

import (
	"regexp"
	"strconv"
)

// taskListItemPattern matches a checklist line: "- [ ] ...", "* [x] ...", "+ [X] ...".
var taskListItemPattern = regexp.MustCompile(`(?im)^[ \t]*[-*+][ \t]+\[[ x]\][ \t]+(.*)$`)

// issueRefPattern matches "#123", "owner/repo#123" and ".../issues/123" inside an item.
var issueRefPattern = regexp.MustCompile(`(?:^|[\s(\[,:;]|[\w.-]+/[\w.-]+)#(\d+)\b|/issues/(\d+)\b`)

// TaskListReferences returns the issue numbers referenced from task-list items in body,
// in order of appearance. A checklist item without an issue reference contributes nothing.
func TaskListReferences(body string) []int {
	var refs []int
	for _, item := range taskListItemPattern.FindAllStringSubmatch(body, -1) {
		for _, m := range issueRefPattern.FindAllStringSubmatch(item[1], -1) {
			digits := m[1]
			if digits == "" {
				digits = m[2]
			}
			n, err := strconv.Atoi(digits)
			if err != nil || n <= 0 {
				continue
			}
			refs = append(refs, n)
		}
	}
	return refs
}

// HasTaskListReferences reports whether body tracks at least one issue via a task list.
func HasTaskListReferences(body string) bool {
	return len(TaskListReferences(body)) > 0
}

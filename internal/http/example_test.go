package http_test

import (
	"fmt"

	projecthttp "github.com/fyrsmithlabs/projectd/internal/http"
	"github.com/fyrsmithlabs/projectd/internal/project"
)

func ExampleStatusFor() {
	fmt.Println(projecthttp.StatusFor(project.ErrForbidden))
	fmt.Println(projecthttp.StatusFor(fmt.Errorf("detach: %w", project.ErrTaskNotAttached)))
	// Output:
	// 403
	// 409
}

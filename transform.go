package static

import "io"

// Transform rewrites a file's bytes on their way to the client. Apply must
// read src until EOF, write the result to dst, and return any failure.
type Transform interface {
	Apply(dst io.Writer, src io.Reader) error
}

// TransformFunc adapts a function to the Transform interface.
type TransformFunc func(dst io.Writer, src io.Reader) error

func (f TransformFunc) Apply(dst io.Writer, src io.Reader) error {
	return f(dst, src)
}

// TransformFactory builds the Transform for one file. filePath is the
// absolute path of the file being streamed and logicalPath the decoded
// request path. A nil Transform streams the file unchanged; an error aborts
// the response.
//
// Factories are only consulted for text-like content types and are called
// once per streamed file. They are skipped when the response carries a
// Content-Encoding, such as a substituted .gz sibling.
type TransformFactory func(filePath, logicalPath string) (Transform, error)

package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Document QA service errors (service code 21).

var (
	// ErrInvalidQuestion indicates a question that is empty or too short.
	ErrInvalidQuestion = Register(New(MakeCode(ServiceDocQA, CategoryRequest, 1),
		http.StatusBadRequest, codes.InvalidArgument, "Invalid question", "问题无效"))

	// ErrInvalidFilename indicates a filename with path components or a bad extension.
	ErrInvalidFilename = Register(New(MakeCode(ServiceDocQA, CategoryRequest, 2),
		http.StatusBadRequest, codes.InvalidArgument, "Invalid filename", "文件名无效"))

	// ErrUnsupportedFile indicates an upload whose type cannot be extracted.
	ErrUnsupportedFile = Register(New(MakeCode(ServiceDocQA, CategoryRequest, 3),
		http.StatusBadRequest, codes.InvalidArgument, "Unsupported file type", "不支持的文件类型"))

	// ErrFileTooLarge indicates an upload above the per-file size limit.
	ErrFileTooLarge = Register(New(MakeCode(ServiceDocQA, CategoryRequest, 4),
		http.StatusRequestEntityTooLarge, codes.InvalidArgument, "File too large", "文件过大"))

	// ErrNoDocuments indicates a question asked against an empty session.
	ErrNoDocuments = Register(New(MakeCode(ServiceDocQA, CategoryRequest, 5),
		http.StatusBadRequest, codes.FailedPrecondition, "No documents in session", "会话中没有文档"))

	// ErrNoFiles indicates an upload request without files.
	ErrNoFiles = Register(New(MakeCode(ServiceDocQA, CategoryRequest, 6),
		http.StatusBadRequest, codes.InvalidArgument, "No files provided", "未提供文件"))
)

var (
	// ErrSessionNotFound indicates an unknown session id.
	ErrSessionNotFound = Register(New(MakeCode(ServiceDocQA, CategoryResource, 1),
		http.StatusNotFound, codes.NotFound, "Session not found", "会话不存在"))

	// ErrDocumentNotFound indicates an unknown document id inside a session.
	ErrDocumentNotFound = Register(New(MakeCode(ServiceDocQA, CategoryResource, 2),
		http.StatusNotFound, codes.NotFound, "Document not found", "文档不存在"))
)

var (
	// ErrExtractionFailed indicates text extraction failed for a document.
	ErrExtractionFailed = Register(New(MakeCode(ServiceDocQA, CategoryInternal, 1),
		http.StatusInternalServerError, codes.Internal, "Extraction failed", "文本提取失败"))

	// ErrIndexFailed indicates the retrieval index could not be built.
	ErrIndexFailed = Register(New(MakeCode(ServiceDocQA, CategoryInternal, 2),
		http.StatusInternalServerError, codes.Internal, "Index build failed", "索引构建失败"))

	// ErrCacheUnavailable indicates the result cache backend is unreachable.
	ErrCacheUnavailable = Register(New(MakeCode(ServiceDocQA, CategoryCache, 1),
		http.StatusServiceUnavailable, codes.Unavailable, "Cache unavailable", "缓存不可用"))

	// ErrExtractionTimeout indicates extraction exceeded its deadline.
	ErrExtractionTimeout = Register(New(MakeCode(ServiceDocQA, CategoryTimeout, 1),
		http.StatusGatewayTimeout, codes.DeadlineExceeded, "Extraction timed out", "文本提取超时"))
)

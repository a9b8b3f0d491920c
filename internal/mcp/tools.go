package mcp

import "github.com/mark3labs/mcp-go/mcp"

var createToolDef = mcp.NewTool("note_create",
	mcp.WithDescription("Start a new empty note and open it in the editor. Returns the session state."),
)

var openToolDef = mcp.NewTool("note_open",
	mcp.WithDescription("Open an existing note for editing. Opening a note that no longer exists leaves the current selection unchanged and returns an info notice."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Note id as shown in the list rows")),
)

var saveToolDef = mcp.NewTool("note_save",
	mcp.WithDescription("Save title and content to the open note. With no note open, a new note is created from the fields. The list title falls back to the first non-empty content line when title is blank."),
	mcp.WithString("title", mcp.Description("Note title (may be empty)")),
	mcp.WithString("content", mcp.Description("Note body (may be empty)")),
)

var deleteToolDef = mcp.NewTool("note_delete",
	mcp.WithDescription("Delete the open note. Nothing is deleted unless confirm is true."),
	mcp.WithBoolean("confirm", mcp.Description("Must be true to delete; false or missing declines")),
)

var closeToolDef = mcp.NewTool("note_close",
	mcp.WithDescription("Close the editor without deleting the open note."),
)

var searchToolDef = mcp.NewTool("note_search",
	mcp.WithDescription("Filter the list to notes whose title contains keyword, ignoring case. An empty keyword shows every note."),
	mcp.WithString("keyword", mcp.Description("Search text; surrounding whitespace is ignored")),
)

var stateToolDef = mcp.NewTool("note_state",
	mcp.WithDescription("Return the current list rows, editor fields and notice without changing anything."),
)

var exportToolDef = mcp.NewTool("note_export",
	mcp.WithDescription("Export every note to a file in the memo exports directory."),
	mcp.WithString("format", mcp.Description("jsonl (default) or yaml"), mcp.Enum("jsonl", "yaml")),
	mcp.WithString("path", mcp.Description("File name directly inside the exports directory; default notes-<timestamp>.<format>")),
)

package protocol

import (
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/forkcheck-go/internal/errors"
)

func TestTag_Valid(t *testing.T) {
	for _, tag := range Tags {
		require.True(t, tag.Valid(), "tag %s should be valid", tag)
	}

	require.False(t, Tag("Compile").Valid())
	require.False(t, Tag("").Valid())
}

func TestNewRequest_WireFormat(t *testing.T) {
	req, err := NewRequest(1, &EmitFileRequest{FileName: "a.ts", Text: "content"})
	require.NoError(t, err)

	data, err := json.Marshal(req)
	require.NoError(t, err)
	require.JSONEq(t,
		`{"tag":"EmitFile","seq":1,"payload":{"fileName":"a.ts","text":"content"}}`,
		string(data),
	)
}

func TestNewRequest_InitStripsImpl(t *testing.T) {
	req, err := NewRequest(1, &InitRequest{
		SessionID: "01J0000000000000000000000",
		CompilerInfo: CompilerInfo{
			CompilerPath:    "/node_modules/typescript",
			CompilerVersion: "5.4.0",
			Impl:            func() {},
		},
		LoaderConfig:   LoaderConfig{ConfigFileName: "tsconfig.json"},
		CompilerConfig: CompilerConfig{Files: []string{"a.ts"}},
		BuildOptions:   map[string]any{"mode": "development"},
	})
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(req.Payload, &payload))

	info, ok := payload["compilerInfo"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "/node_modules/typescript", info["compilerPath"])
	require.NotContains(t, info, "Impl")
	require.NotContains(t, info, "impl")
	require.Equal(t, map[string]any{"mode": "development"}, payload["buildOptions"])
}

func TestRequest_DecodePayload(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Payload
	}{
		{
			name: "emit file",
			raw:  `{"tag":"EmitFile","seq":3,"payload":{"fileName":"a.ts","text":"x"}}`,
			want: &EmitFileRequest{FileName: "a.ts", Text: "x"},
		},
		{
			name: "update file",
			raw:  `{"tag":"UpdateFile","seq":4,"payload":{"fileName":"b.ts","text":"y"}}`,
			want: &UpdateFileRequest{FileName: "b.ts", Text: "y"},
		},
		{
			name: "remove file",
			raw:  `{"tag":"RemoveFile","seq":5,"payload":{"fileName":"b.ts"}}`,
			want: &RemoveFileRequest{FileName: "b.ts"},
		},
		{
			name: "diagnostics without payload",
			raw:  `{"tag":"Diagnostics","seq":6}`,
			want: &DiagnosticsRequest{},
		},
		{
			name: "files",
			raw:  `{"tag":"Files","seq":7,"payload":{}}`,
			want: &FilesRequest{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req Request
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &req))

			got, err := req.DecodePayload()
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.Equal(t, req.Tag, got.Tag())
		})
	}
}

func TestRequest_DecodePayload_UnknownTag(t *testing.T) {
	req := &Request{Tag: "Compile", Seq: 1}

	_, err := req.DecodePayload()
	require.Error(t, err)
	require.True(t, stderrors.Is(err, errors.ErrUnknownTag))
}

func TestResponses(t *testing.T) {
	ok, err := SuccessResponse(1, EmitResult{EmitSkipped: false})
	require.NoError(t, err)

	data, err := json.Marshal(ok)
	require.NoError(t, err)
	require.JSONEq(t, `{"seq":1,"success":true,"payload":{"emitSkipped":false}}`, string(data))

	ack, err := SuccessResponse(2, nil)
	require.NoError(t, err)
	require.True(t, ack.Success)
	require.Empty(t, ack.Payload)

	fail := ErrorResponse(3, "type error")
	data, err = json.Marshal(fail)
	require.NoError(t, err)
	require.JSONEq(t, `{"seq":3,"success":false,"payload":{"message":"type error"}}`, string(data))
}

func TestRequest_Validate(t *testing.T) {
	valid, err := NewRequest(1, &UpdateFileRequest{FileName: "a.ts", Text: ""})
	require.NoError(t, err)
	require.NoError(t, valid.Validate())

	empty := &Request{Tag: TagDiagnostics, Seq: 2}
	require.NoError(t, empty.Validate())

	missing := &Request{Tag: TagRemoveFile, Seq: 3, Payload: json.RawMessage(`{}`)}
	require.Error(t, missing.Validate())

	wrongType := &Request{Tag: TagEmitFile, Seq: 4, Payload: json.RawMessage(`{"fileName":7,"text":"x"}`)}
	require.Error(t, wrongType.Validate())

	unknown := &Request{Tag: "Compile", Seq: 5}
	require.ErrorIs(t, unknown.Validate(), errors.ErrUnknownTag)
}

func TestSeqFromHead(t *testing.T) {
	tests := []struct {
		name   string
		head   string
		want   uint64
		wantOK bool
	}{
		{name: "response", head: `{"seq":42,"success":true,"payload":{"out`, want: 42, wantOK: true},
		{name: "request", head: `{"tag":"EmitFile","seq":7,"payload":{"fileName":"a.ts","te`, want: 7, wantOK: true},
		{name: "spaced", head: `{ "seq" : 3 }`, want: 3, wantOK: true},
		{name: "cut before digits", head: `{"seq":`, wantOK: false},
		{name: "no seq", head: `{"success":true,"payload":"xxxx`, wantOK: false},
		{name: "overflow", head: `{"seq":99999999999999999999999}`, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq, ok := SeqFromHead([]byte(tt.head))
			require.Equal(t, tt.wantOK, ok)
			require.Equal(t, tt.want, seq)
		})
	}
}

package schema

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/motectl/internal/errs"
	"github.com/and161185/motectl/internal/model"
)

func kindOf(t *testing.T, ft model.FieldType) Kind {
	t.Helper()
	k, err := KindOf(ft)
	require.NoError(t, err)
	return k
}

func TestKindOf_EveryFieldTypeHasAKind(t *testing.T) {
	t.Parallel()

	for _, ft := range model.FieldTypes {
		k, err := KindOf(ft)
		require.NoError(t, err, ft)
		require.Equal(t, ft, k.Type())
	}
}

func TestKindOf_AliasesAndUnknown(t *testing.T) {
	t.Parallel()

	require.Equal(t, model.FieldText, kindOf(t, "string").Type())
	require.Equal(t, model.FieldBoolean, kindOf(t, "bool").Type())
	require.Equal(t, WidgetTextarea, kindOf(t, "editor").Widget())
	require.Equal(t, WidgetInput, kindOf(t, "").Widget())

	_, err := KindOf("geo")
	require.True(t, errors.Is(err, errs.ErrUnknownFieldType))
}

func TestParse_PerKind(t *testing.T) {
	t.Parallel()

	def := func(ft model.FieldType) model.FieldDefinition {
		return model.FieldDefinition{Name: "f", Type: ft}
	}

	cases := []struct {
		name    string
		def     model.FieldDefinition
		in      string
		want    any
		wantErr bool
	}{
		{"text", def(model.FieldText), "hello", "hello", false},
		{"email ok", def(model.FieldEmail), "a@b.io", "a@b.io", false},
		{"email bad", def(model.FieldEmail), "nope", nil, true},
		{"email display name", def(model.FieldEmail), "A <a@b.io>", nil, true},
		{"url ok", def(model.FieldURL), "https://x.io/p", "https://x.io/p", false},
		{"url relative", def(model.FieldURL), "/p", nil, true},
		{"number", def(model.FieldNumber), "3.5", json.Number("3.5"), false},
		{"number empty", def(model.FieldNumber), "", nil, false},
		{"number bad", def(model.FieldNumber), "x", nil, true},
		{"bool yes", def(model.FieldBoolean), "Yes", true, false},
		{"bool 0", def(model.FieldBoolean), "0", false, false},
		{"bool bad", def(model.FieldBoolean), "maybe", nil, true},
		{"date only", def(model.FieldDate), "2024-02-29", "2024-02-29", false},
		{"date rfc3339", def(model.FieldDate), "2024-02-29T10:00:00Z", "2024-02-29T10:00:00Z", false},
		{"date bad", def(model.FieldDate), "29/02/2024", nil, true},
		{"json", def(model.FieldJSON), `{"a":1}`, map[string]any{"a": json.Number("1")}, false},
		{"json bad", def(model.FieldJSON), `{`, nil, true},
		{"relation", def(model.FieldRelation), " r1 ", "r1", false},
		{"file", def(model.FieldFile), "x.png", nil, true},
		{
			"select ok",
			model.FieldDefinition{Name: "s", Type: model.FieldSelect, Options: map[string]any{"values": []any{"a", "b"}}},
			"b", "b", false,
		},
		{
			"select bad",
			model.FieldDefinition{Name: "s", Type: model.FieldSelect, Options: map[string]any{"values": []any{"a", "b"}}},
			"c", nil, true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := kindOf(t, tc.def.Type).Parse(tc.def, tc.in)
			if tc.wantErr {
				require.Error(t, err)
				require.True(t, errors.Is(err, errs.ErrValidation))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestDisplay(t *testing.T) {
	t.Parallel()

	require.Equal(t, "—", kindOf(t, model.FieldText).Display(nil))
	require.Equal(t, "Yes", kindOf(t, model.FieldBoolean).Display(true))
	require.Equal(t, "No", kindOf(t, model.FieldBoolean).Display(false))
	require.Equal(t, "42", kindOf(t, model.FieldNumber).Display(json.Number("42")))

	long := strings.Repeat("x", 60)
	require.Equal(t, strings.Repeat("x", 50)+"...", kindOf(t, model.FieldText).Display(long))

	js := kindOf(t, model.FieldJSON).Display(map[string]any{"k": strings.Repeat("v", 60)})
	require.True(t, strings.HasSuffix(js, "..."))
	require.Len(t, js, 53)

	file := map[string]any{"filename": "a.png", "mime_type": "image/png"}
	require.Equal(t, "a.png", kindOf(t, model.FieldFile).Display(file))
	require.Equal(t, "—", kindOf(t, model.FieldFile).Display(""))
}

func TestEncode(t *testing.T) {
	t.Parallel()

	require.Equal(t, "abc", kindOf(t, model.FieldText).Encode("abc"))
	require.Equal(t, "1.50", kindOf(t, model.FieldNumber).Encode(json.Number("1.50")))
	require.Equal(t, "true", kindOf(t, model.FieldBoolean).Encode(true))
	require.Equal(t, `{"a":[1,2]}`, kindOf(t, model.FieldJSON).Encode(map[string]any{"a": []any{1, 2}}))
}

func TestExistingFile_ObjectAndString(t *testing.T) {
	t.Parallel()

	f, ok := ExistingFile(map[string]any{"filename": "doc.pdf", "mime_type": "application/pdf", "size": json.Number("10")})
	require.True(t, ok)
	require.Equal(t, model.ExistingFile{Filename: "doc.pdf", MimeType: "application/pdf", Size: 10}, f)
	require.False(t, f.IsImage())

	f, ok = ExistingFile(`{"filename":"a.jpg","mime_type":"image/jpeg"}`)
	require.True(t, ok)
	require.True(t, f.IsImage())

	_, ok = ExistingFile("not json")
	require.False(t, ok)
}

func TestDeriveFieldList_MappingAndSequence(t *testing.T) {
	t.Parallel()

	m, err := DeriveFieldList([]byte(`{"title":{"type":"text"},"views":{}}`))
	require.NoError(t, err)
	require.Equal(t, []string{"title", "views"}, m.Names())
	require.Equal(t, model.FieldText, m[1].Type)

	s, err := DeriveFieldList([]byte(`[{"name":"title","type":"text"},{"name":"views","type":"number"}]`))
	require.NoError(t, err)
	require.Equal(t, []string{"title", "views"}, s.Names())

	empty, err := DeriveFieldList([]byte(`null`))
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestVisibleFieldsAndCheck(t *testing.T) {
	t.Parallel()

	var s model.Schema
	for _, n := range []string{"a", "b", "c", "d", "e", "f"} {
		s = append(s, model.FieldDefinition{Name: n, Type: model.FieldText})
	}
	require.Equal(t, []string{"a", "b", "c", "d", "e"}, VisibleFields(s).Names())
	require.NoError(t, Check(s))

	s = append(s, model.FieldDefinition{Name: "g", Type: "geo"})
	require.ErrorIs(t, Check(s), errs.ErrUnknownFieldType)

	_, err := Parse(s, "g", "x")
	require.ErrorIs(t, err, errs.ErrUnknownFieldType)
	_, err = Parse(s, "missing", "x")
	require.ErrorIs(t, err, errs.ErrValidation)
	require.Equal(t, "x", Display(s[6], "x"))
}

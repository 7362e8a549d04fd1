package reconcile

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/motectl/internal/model"
)

func ptr(s string) *string { return &s }

func posts(id model.ID, name string, fields ...model.FieldDefinition) model.Collection {
	return model.Collection{ID: id, Name: name, Type: model.CollectionBase, Schema: fields}
}

var title = model.FieldDefinition{Name: "title", Type: model.FieldText}

func TestReconcile_SchemaUpdate(t *testing.T) {
	t.Parallel()

	live := []model.Collection{posts("1", "posts", title)}
	cand := []model.Collection{posts("1", "posts", title, model.FieldDefinition{Name: "body", Type: model.FieldJSON})}

	got := Reconcile(live, cand)
	require.Equal(t, []model.ImportChange{{
		Kind:          model.ChangeUpdate,
		Name:          "posts",
		ID:            "1",
		FieldCount:    2,
		SchemaChanged: true,
	}}, got)
}

func TestReconcile_ConflictAndDelete(t *testing.T) {
	t.Parallel()

	got := Reconcile(
		[]model.Collection{posts("1", "posts")},
		[]model.Collection{posts("2", "posts")},
	)
	require.Len(t, got, 2)
	require.Equal(t, model.ChangeConflict, got[0].Kind)
	require.Equal(t, "posts", got[0].Name)
	require.NotEmpty(t, got[0].Reason)
	require.Equal(t, model.ChangeDelete, got[1].Kind)
	require.Equal(t, "posts", got[1].Name)
	require.Equal(t, model.ID("1"), got[1].ID)
	require.True(t, HasConflicts(got))
}

func TestReconcile_RenameWinsOverUpdate(t *testing.T) {
	t.Parallel()

	live := []model.Collection{posts("1", "posts", title)}
	cand := posts("1", "articles")
	cand.ListRule = ptr("@request.auth.id != ''")

	got := Reconcile(live, []model.Collection{cand})
	require.Len(t, got, 1)
	require.Equal(t, model.ChangeRename, got[0].Kind)
	require.Equal(t, "posts", got[0].OldName)
	require.Equal(t, "articles", got[0].Name)
	require.False(t, got[0].SchemaChanged)
	require.False(t, got[0].RulesChanged)
}

func TestReconcile_UnchangedOmitted(t *testing.T) {
	t.Parallel()

	a := posts("1", "posts", title, model.FieldDefinition{Name: "views", Type: model.FieldNumber})
	a.ViewRule = ptr("")
	b := posts("1", "posts", model.FieldDefinition{Name: "views", Type: model.FieldNumber}, title)

	require.Empty(t, Reconcile([]model.Collection{a}, []model.Collection{b}))
}

func TestReconcile_RulesOnly(t *testing.T) {
	t.Parallel()

	a := posts("1", "posts", title)
	b := posts("1", "posts", title)
	b.DeleteRule = ptr("false")

	got := Reconcile([]model.Collection{a}, []model.Collection{b})
	require.Len(t, got, 1)
	require.Equal(t, model.ChangeUpdate, got[0].Kind)
	require.True(t, got[0].RulesChanged)
	require.False(t, got[0].SchemaChanged)
}

func TestReconcile_OrderAndCreate(t *testing.T) {
	t.Parallel()

	live := []model.Collection{posts("1", "posts"), posts("2", "users"), posts("3", "tags")}
	cand := []model.Collection{posts("9", "comments"), posts("", "drafts"), posts("2", "users")}

	got := Reconcile(live, cand)
	kinds := make([]model.ChangeKind, len(got))
	names := make([]string, len(got))
	for i, ch := range got {
		kinds[i], names[i] = ch.Kind, ch.Name
	}
	require.Equal(t, []model.ChangeKind{model.ChangeCreate, model.ChangeCreate, model.ChangeDelete, model.ChangeDelete}, kinds)
	require.Equal(t, []string{"comments", "drafts", "posts", "tags"}, names)

	s := Summarize(got, false)
	require.Equal(t, Summary{Creates: 2}, s)
	s = Summarize(got, true)
	require.Equal(t, 2, s.Deletes)
	require.False(t, HasConflicts(got))
}

func TestReconcile_MissingIDNeverMatches(t *testing.T) {
	t.Parallel()

	got := Reconcile(
		[]model.Collection{posts("", "posts")},
		[]model.Collection{posts("", "posts")},
	)
	require.Equal(t, model.ChangeConflict, got[0].Kind)
	require.Equal(t, model.ChangeDelete, got[1].Kind)
}

func TestReconcile_Idempotent(t *testing.T) {
	t.Parallel()

	live := []model.Collection{posts("1", "posts", title), posts("2", "users")}
	cand := []model.Collection{posts("1", "articles"), posts("3", "users")}

	first := Reconcile(live, cand)
	second := Reconcile(live, cand)
	require.Equal(t, first, second)
}

func TestSummary_Empty(t *testing.T) {
	t.Parallel()

	require.True(t, Summary{}.Empty())
	require.True(t, Summary{Conflicts: 1}.Empty())
	require.False(t, Summary{Renames: 1}.Empty())
}

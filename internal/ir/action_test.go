package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAction_SeverityOrder(t *testing.T) {
	order := []Action{ActionDependency, ActionModify, ActionMove, ActionRemove}
	for i := 1; i < len(order); i++ {
		assert.Greater(t, order[i].Severity(), order[i-1].Severity())
	}
}

func TestAction_MaxIsCommutative(t *testing.T) {
	all := []Action{ActionDependency, ActionModify, ActionMove, ActionRemove}
	for _, a := range all {
		for _, b := range all {
			assert.Equal(t, a.Max(b), b.Max(a), "%s/%s", a, b)
		}
	}
	assert.Equal(t, ActionRemove, ActionModify.Max(ActionRemove))
}

func TestAction_ParseRoundTrip(t *testing.T) {
	for _, a := range []Action{ActionDependency, ActionModify, ActionMove, ActionRemove} {
		parsed, err := ParseAction(a.String())
		require.NoError(t, err)
		assert.Equal(t, a, parsed)
	}
	_, err := ParseAction("publish")
	assert.Error(t, err)
}

func TestDirtyMark_Merge(t *testing.T) {
	a := DirtyMark{Kind: KindPage, ID: 1, ChannelID: 2, Action: ActionDependency, Properties: []string{"name"}, Seq: 5}
	b := DirtyMark{Kind: KindPage, ID: 1, ChannelID: 2, Action: ActionModify, Properties: []string{"name", "url"}, Seq: 3}

	ab := a.Merge(b)
	ba := b.Merge(a)

	assert.Equal(t, ActionModify, ab.Action)
	assert.Equal(t, ActionModify, ba.Action)
	assert.ElementsMatch(t, []string{"name", "url"}, ab.Properties)
	assert.Equal(t, int64(3), ab.Seq)
	assert.Equal(t, []string{"name"}, a.Properties, "merge must not alias the receiver")
}

func TestEntityRef_Empty(t *testing.T) {
	assert.True(t, Ref(KindPage, 0).Empty())
	assert.True(t, Ref(KindPage, -3).Empty())
	assert.False(t, Ref(KindPage, 1).Empty())
	assert.Equal(t, "page:4@2", EntityRef{Kind: KindPage, ID: 4, ChannelID: 2}.String())
}

func TestEvent_NextIncrementsDepth(t *testing.T) {
	props := []string{"name"}
	ev := NewEvent(Ref(KindPage, 1), props, EventUpdate, 3)
	props[0] = "mutated"
	assert.Equal(t, []string{"name"}, ev.Properties, "constructor copies properties")

	next := ev.Next(Ref(KindFolder, 2), []string{"pages"}, EventUpdate)
	assert.Equal(t, 1, next.Depth)
	assert.Equal(t, int64(3), next.ChannelID)
	assert.Equal(t, 0, ev.Depth)
}

func TestEvent_MovedFromNode(t *testing.T) {
	ev := NewEvent(Ref(KindFolder, 1), MoveProperties(7), EventMove, 0)
	node, ok := ev.MovedFromNode()
	require.True(t, ok)
	assert.Equal(t, int64(7), node)

	ev = NewEvent(Ref(KindFolder, 1), MoveProperties(7), EventUpdate, 0)
	_, ok = ev.MovedFromNode()
	assert.False(t, ok, "only move events carry a source node")

	assert.Nil(t, MoveProperties(0))
}

func TestEvent_DependencyObject(t *testing.T) {
	src := Ref(KindPage, 1)
	ev := NewEvent(src, nil, EventCreate, 0)
	assert.Equal(t, src, ev.DependencyObject())

	obj := Ref(KindFolder, 9)
	ev.Object = &obj
	assert.Equal(t, obj, ev.DependencyObject())
}

func TestKind_Dispatch(t *testing.T) {
	for _, k := range Kinds {
		parsed, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	assert.True(t, KindPage.Hierarchical())
	assert.False(t, KindTag.Hierarchical())
	assert.Equal(t, PropPages, KindPage.ChildListProperty())
	assert.Equal(t, "", KindGeneric.ChildListProperty())
	assert.True(t, KindImage.Binary())

	_, err := ParseKind("template")
	assert.Error(t, err)
}

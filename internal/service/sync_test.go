package service_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/NickZhezl/LiveCodeInno/internal/dto"
	"github.com/NickZhezl/LiveCodeInno/internal/exec"
	"github.com/NickZhezl/LiveCodeInno/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncService_ApplyEdit_BroadcastsDocSync(t *testing.T) {
	state := newStateStub()
	syncSvc := service.NewSyncService(state)
	ctx := context.Background()

	version, err := syncSvc.ApplyEdit(ctx, "room1", "alice", "conn-1", "print(1)", 7)

	require.NoError(t, err)
	assert.Equal(t, uint64(1), version, "第一次写入后版本号应为 1")

	events := state.events()
	require.Len(t, events, 1)
	assert.Equal(t, "conn-1", events[0].OriginConn, "事件应带来源连接，广播时跳过它")
	assert.Equal(t, dto.TypeDocSync, events[0].Message.Type)

	var payload dto.DocSync
	require.NoError(t, json.Unmarshal(events[0].Message.Payload, &payload))
	assert.Equal(t, "print(1)", payload.Code)
	assert.Equal(t, uint64(1), payload.Version)
	require.NotNil(t, payload.Origin)
	assert.Equal(t, "alice", payload.Origin.UserName)
	assert.Equal(t, uint64(7), payload.Origin.Rev)
}

func TestSyncService_ChangeLanguage_SeedsEmptyBuffer(t *testing.T) {
	state := newStateStub()
	state.seeded = true // 空缓冲区的已初始化房间
	syncSvc := service.NewSyncService(state)

	_, err := syncSvc.ChangeLanguage(context.Background(), "room1", "alice", "python")

	require.NoError(t, err)
	assert.Equal(t, "python", state.doc.Language)
	assert.Equal(t, exec.StarterSnippet("python"), state.doc.Code, "空缓冲区切语言应写入起始代码")

	events := state.events()
	require.Len(t, events, 1)
	assert.Empty(t, events[0].OriginConn, "语言切换对发起者也可见")
}

func TestSyncService_ChangeLanguage_KeepsNonEmptyBuffer(t *testing.T) {
	state := newStateStub()
	state.seeded = true
	state.doc.Code = "console.log('keep me')"
	syncSvc := service.NewSyncService(state)

	_, err := syncSvc.ChangeLanguage(context.Background(), "room1", "alice", "python")

	require.NoError(t, err)
	assert.Equal(t, "console.log('keep me')", state.doc.Code, "非空缓冲区不应被起始代码覆盖")
}

func TestSyncService_ChangeLanguage_RejectsUnknown(t *testing.T) {
	syncSvc := service.NewSyncService(newStateStub())

	_, err := syncSvc.ChangeLanguage(context.Background(), "room1", "alice", "cobol")

	assert.ErrorIs(t, err, service.ErrInvalidLanguage)
}

func TestSyncService_RoomSnapshot_ReseedsMissingDoc(t *testing.T) {
	state := newStateStub() // 未初始化的房间
	syncSvc := service.NewSyncService(state)

	doc, cursors, err := syncSvc.RoomSnapshot(context.Background(), "room1")

	require.NoError(t, err)
	assert.Equal(t, exec.DefaultLanguage, doc.Language)
	assert.Equal(t, exec.StarterSnippet(exec.DefaultLanguage), doc.Code, "文档缺失时用默认语言起始代码重建")
	assert.Empty(t, cursors)
}

// 回声判定：自己写入的 doc.sync 只被抑制一次，
// 此后相同 (用户, rev) 的更新和别人的更新都照常应用。
func TestSession_EchoSuppressedExactlyOnce(t *testing.T) {
	session := service.NewSession("alice")

	rev := session.TrackWrite()

	assert.False(t, session.ShouldApply(&dto.Origin{UserName: "alice", Rev: rev}), "自己的回声应被抑制")
	assert.True(t, session.ShouldApply(&dto.Origin{UserName: "alice", Rev: rev}), "同一 rev 只抑制一次")
}

func TestSession_OtherUsersEditsApply(t *testing.T) {
	session := service.NewSession("alice")
	session.TrackWrite()

	// 别人在自己写入和回声之间的编辑不能被吞掉
	assert.True(t, session.ShouldApply(&dto.Origin{UserName: "bob", Rev: 1}))
	assert.True(t, session.ShouldApply(nil), "无来源标记的同步照常应用")
}

// 来源连接收到自己写的回流时走 Settle 而不是 ShouldApply：
// 通知不回发给它，但登记必须销掉，否则长连接的 pending 随编辑无限增长。
func TestSession_SettleDrainsWriteLedger(t *testing.T) {
	session := service.NewSession("alice")
	rev := session.TrackWrite()

	session.Settle(&dto.Origin{UserName: "alice", Rev: rev})

	assert.True(t, session.ShouldApply(&dto.Origin{UserName: "alice", Rev: rev}), "销账后同一 rev 不再被当作回声")
}

func TestSession_SettleIgnoresForeignOrigins(t *testing.T) {
	session := service.NewSession("alice")
	rev := session.TrackWrite()

	// 别人的来源和空来源不碰自己的登记
	session.Settle(&dto.Origin{UserName: "bob", Rev: rev})
	session.Settle(nil)

	assert.False(t, session.ShouldApply(&dto.Origin{UserName: "alice", Rev: rev}), "登记应保留到自己的回流出现")
}

func TestSession_TrackClientRev(t *testing.T) {
	session := service.NewSession("alice")

	session.Track(42)

	assert.False(t, session.ShouldApply(&dto.Origin{UserName: "alice", Rev: 42}))
	assert.True(t, session.ShouldApply(&dto.Origin{UserName: "alice", Rev: 41}), "未登记的 rev 视为同名用户其他连接的写入")
}

package failover

import (
	"errors"
	"strings"
	"syscall"
	"time"

	"github.com/wavelink/go-wavelink/pkg/types"
)

// ============================================================================
//                              故障分类
// ============================================================================

// 认证类 websocket 关闭码
const (
	// closeCodePolicyViolation RFC 6455 策略违例
	closeCodePolicyViolation = 1008

	// closeCodeInvalidAuth 节点自定义：凭证无效
	closeCodeInvalidAuth = 4001

	// closeCodeAuthExpired 节点自定义：会话凭证过期
	closeCodeAuthExpired = 4004
)

// authMessageMarkers 错误消息中的认证类标记（统一小写比较）
var authMessageMarkers = []string{
	"401",
	"403",
	"unauthorized",
	"invalid authorization",
}

// transientMessageMarkers 可调度重连的网络类错误标记
var transientMessageMarkers = []string{
	"connection refused",
	"no such host",
	"connection reset",
	"unable to connect",
	"timeout",
	"timed out",
	"broken pipe",
	"eof",
}

// containsAny 检查 s（小写化后）是否包含任一标记
func containsAny(s string, markers []string) bool {
	s = strings.ToLower(s)
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// IsAuthError 判断错误是否属于认证类
//
// 认证类故障不在同一节点上重试：消息包含 401/403/unauthorized/
// invalid authorization，或底层为 connection-reset（节点侧主动
// 掐断，多见于凭证校验失败后的粗暴关闭）。
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	return containsAny(err.Error(), authMessageMarkers)
}

// IsAuthClose 判断断开是否属于认证类
func IsAuthClose(code int, reason string) bool {
	switch code {
	case closeCodePolicyViolation, closeCodeInvalidAuth, closeCodeAuthExpired:
		return true
	}
	return containsAny(reason, authMessageMarkers)
}

// Classify 返回错误的故障分类
func Classify(err error) types.FailureClass {
	if IsAuthError(err) {
		return types.FailureAuth
	}
	return types.FailureTransient
}

// ============================================================================
//                              事件延迟
// ============================================================================

// 事件驱动的重连延迟
const (
	// authRetryDelay 认证类故障后的重连延迟
	authRetryDelay = 1 * time.Second

	// errorRetryDelay 网络类错误后的重连延迟
	errorRetryDelay = 5 * time.Second

	// noPingDisconnectDelay socket 因心跳缺失死亡后的重连延迟
	noPingDisconnectDelay = 5 * time.Second

	// timeoutDisconnectDelay 超时类断开后的重连延迟
	timeoutDisconnectDelay = 3 * time.Second

	// defaultDisconnectDelay 其余断开的默认重连延迟
	defaultDisconnectDelay = 2 * time.Second
)

// ErrorRetryDelay 返回错误事件应调度的重连延迟
//
// 仅认证类与已识别的网络类错误调度重连；无法识别的错误交由
// 健康检查定时器兜底，返回 ok=false。
func ErrorRetryDelay(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	if IsAuthError(err) {
		return authRetryDelay, true
	}
	if containsAny(err.Error(), transientMessageMarkers) {
		return errorRetryDelay, true
	}
	return 0, false
}

// DisconnectDelay 返回断开事件的重连延迟
//
// 延迟按断开原因分级：认证 1s、心跳缺失 5s、超时 3s、默认 2s。
func DisconnectDelay(authClass bool, reason string) time.Duration {
	if authClass {
		return authRetryDelay
	}
	lower := strings.ToLower(reason)
	if strings.Contains(lower, "no ping") {
		return noPingDisconnectDelay
	}
	if strings.Contains(lower, "timeout") || strings.Contains(lower, "timed out") {
		return timeoutDisconnectDelay
	}
	return defaultDisconnectDelay
}

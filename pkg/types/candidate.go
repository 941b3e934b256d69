// Package types 定义 Wavelink 公共类型
package types

import (
	"fmt"
	"net"
	"strconv"
)

// RequiredProtocolVersion 候选节点必须声明的协议版本
//
// 版本不匹配的目录记录不具备候选资格。
const RequiredProtocolVersion = 4

// SecurePort 隐式安全端口
//
// 目录记录未显式声明 secure 时，监听 443 端口的节点视为安全节点。
const SecurePort = 443

// ============================================================================
//                              NodeKey
// ============================================================================

// NodeKey 节点唯一键，格式为 host:port
type NodeKey string

// MakeNodeKey 由 host 和 port 构造节点键
func MakeNodeKey(host string, port int) NodeKey {
	return NodeKey(net.JoinHostPort(host, strconv.Itoa(port)))
}

// String 返回字符串形式
func (k NodeKey) String() string {
	return string(k)
}

// ============================================================================
//                              Candidate
// ============================================================================

// Candidate 一个候选后端音频处理节点
//
// 从远程目录获取后不可变，以 host:port 唯一标识。
type Candidate struct {
	// Host 节点主机名或 IP
	Host string `json:"host"`

	// Port 控制面端口
	Port int `json:"port"`

	// Password 节点访问凭证
	Password string `json:"password"`

	// Secure 是否使用 TLS（wss/https）
	Secure bool `json:"secure"`

	// ProtocolVersion 节点声明的协议版本
	ProtocolVersion int `json:"protocol_version"`

	// Identifier 目录分配的节点标识（可选，仅用于展示）
	Identifier string `json:"identifier,omitempty"`
}

// Key 返回节点唯一键 host:port
func (c Candidate) Key() NodeKey {
	return MakeNodeKey(c.Host, c.Port)
}

// Eligible 检查候选资格
//
// 仅协议版本匹配且 host/port/credential 完整的记录可作为候选。
func (c Candidate) Eligible() bool {
	return c.ProtocolVersion == RequiredProtocolVersion &&
		c.Host != "" && c.Port > 0 && c.Port <= 65535 && c.Password != ""
}

// scheme 按 secure 标志返回协议方案
func (c Candidate) scheme(secure, plain string) string {
	if c.Secure {
		return secure
	}
	return plain
}

// RESTBaseURL 返回节点 REST 基础地址
func (c Candidate) RESTBaseURL() string {
	return fmt.Sprintf("%s://%s", c.scheme("https", "http"), c.Key())
}

// SocketURL 返回节点控制面 websocket 地址
func (c Candidate) SocketURL() string {
	return fmt.Sprintf("%s://%s/v4/websocket", c.scheme("wss", "ws"), c.Key())
}

// String 返回用于日志的简短描述
func (c Candidate) String() string {
	id := c.Identifier
	if id == "" {
		id = "-"
	}
	return fmt.Sprintf("%s(id=%s secure=%v)", c.Key(), id, c.Secure)
}

package models

// Credential 登录凭据: 不透明的会话材料(序列化的cookie)加存活标记
type Credential struct {
	Name     string `json:"name"`
	Material string `json:"-"`
	Live     bool   `json:"live"`
}

// Package biz 提供文档问答服务的业务逻辑层。
//
// 业务组件：
//   - SessionService: 会话的创建、查询与删除
//   - DocumentService: 文档上传、文本提取、后台实体识别与检索索引
//   - QAService: 单文档与跨文档问答，结果缓存
//   - AuthService: 访问令牌签发
//   - StatusService: 健康检查与模型状态
package biz

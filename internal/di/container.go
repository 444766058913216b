package di

import (
	"go.uber.org/dig"
)

// Container 全局依赖注入容器，由BuildContainer创建并注册完整依赖图
var Container *dig.Container

// BuildContainer 创建容器并注册本服务的全部依赖提供者。
// 解析链：config → 向量引擎/嵌入生成器 → 文档管线 → 文件监听器/检索服务。
// 注册阶段不触发任何构造，首次Invoke时才按需实例化。
func BuildContainer() (*dig.Container, error) {
	container := dig.New()
	if err := RegisterProviders(container); err != nil {
		return nil, err
	}
	Container = container
	return container, nil
}

// Invoke 在全局容器上解析依赖并执行function
func Invoke(function interface{}, opts ...dig.InvokeOption) error {
	return Container.Invoke(function, opts...)
}

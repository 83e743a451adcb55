package di

import (
	"fmt"

	"go.uber.org/dig"
)

// Container 是依赖注入容器的全局实例
var Container *dig.Container

// InitContainer 初始化依赖注入容器
func InitContainer() *dig.Container {
	Container = dig.New()
	return Container
}

// GetContainer 获取依赖注入容器实例
func GetContainer() *dig.Container {
	return Container
}

// Invoke 封装dig.Invoke；容器未初始化时返回错误而不是panic，
// 调用方（如控制器Prepare）可据此退化为直接装配
func Invoke(function interface{}, opts ...dig.InvokeOption) error {
	if Container == nil {
		return fmt.Errorf("di container not initialized")
	}
	return Container.Invoke(function, opts...)
}

// Provide 封装dig.Provide
func Provide(constructor interface{}, opts ...dig.ProvideOption) error {
	if Container == nil {
		return fmt.Errorf("di container not initialized")
	}
	return Container.Provide(constructor, opts...)
}

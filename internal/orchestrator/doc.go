// Пакет orchestrator связывает подсистемы секвенатора в единую машину.
//
// Оркестратор владеет очередями задач всех подсистем, компилирует
// рецепты в задачи и раскладывает их по очередям с рёбрами
// зависимостей. Постановка атомарна: либо в очереди попадает весь
// рецепт, либо ничего.
//
// Шаги съёмки разворачиваются в цепочки задач микроскопа, обёрнутые
// в резервацию: пока один флоуселл снимается, задачи съёмки другого
// ждут освобождения микроскопа.
package orchestrator
